package handler

import (
	"net/http"
	"net/http/httptest"
	"strconv"
)

func httptestRecorder(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func uintString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
