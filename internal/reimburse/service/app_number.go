package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const appNumberPrefix = "FB"

// GenerateAppNumber 生成申请编号：FB + 日期 + 6 位大写十六进制随机串
func GenerateAppNumber(now time.Time) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return appNumberPrefix + now.Format("20060102") + strings.ToUpper(hex[:6])
}
