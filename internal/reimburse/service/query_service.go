package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
)

// DefaultPerPage 默认每页条数
const DefaultPerPage = 50

var perPageOptions = []int{25, 50, 100}

// PerPageOptions 每页条数可选值
func PerPageOptions() []int {
	return append([]int(nil), perPageOptions...)
}

// PageRequest 分页参数
type PageRequest struct {
	Page    int
	PerPage int
}

// Normalize page 小于 1 取 1，per_page 不在可选值内取 50
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	valid := false
	for _, n := range perPageOptions {
		if p.PerPage == n {
			valid = true
			break
		}
	}
	if !valid {
		p.PerPage = DefaultPerPage
	}
	return p
}

// PageResult 分页结果
type PageResult struct {
	Items      []entity.Application `json:"items"`
	TotalCount int64                `json:"total_count"`
	TotalPages int                  `json:"total_pages"`
	Page       int                  `json:"page"`
	PerPage    int                  `json:"per_page"`
	HasPrev    bool                 `json:"has_prev"`
	HasNext    bool                 `json:"has_next"`
}

// QueryService 后台列表查询
type QueryService struct {
	repo *repository.ApplicationRepository
}

// NewQueryService 创建列表查询服务
func NewQueryService(repo *repository.ApplicationRepository) *QueryService {
	return &QueryService{repo: repo}
}

// List 按条件筛选、排序并分页；超出末页返回空列表
func (s *QueryService) List(ctx context.Context, q repository.ApplicationQuery, p PageRequest) (*PageResult, error) {
	q = q.Normalize()
	p = p.Normalize()

	items, total, err := s.repo.ListPage(ctx, q, (p.Page-1)*p.PerPage, p.PerPage)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	if items == nil {
		items = []entity.Application{}
	}

	totalPages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	return &PageResult{
		Items:      items,
		TotalCount: total,
		TotalPages: totalPages,
		Page:       p.Page,
		PerPage:    p.PerPage,
		HasPrev:    p.Page > 1,
		HasNext:    p.Page < totalPages,
	}, nil
}
