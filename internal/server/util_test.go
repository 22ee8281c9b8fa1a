package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/loykin/launchr/internal/apperr"
)

func TestSanitizeBase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"api", "/api"},
		{"/api", "/api"},
		{"/api/", "/api"},
		{" api ", "/api"},
	}
	for _, c := range cases {
		if got := sanitizeBase(c.in); got != c.want {
			t.Fatalf("sanitizeBase(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestRespondStatusFollowsKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{apperr.VersionNotFound("x"), http.StatusNotFound},
		{apperr.Conflict("busy"), http.StatusConflict},
		{apperr.New(apperr.KindInsufficientMemory, "low"), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		respond(c, "data", tc.err)
		if rec.Code != tc.want {
			t.Fatalf("respond(%v) status=%d want %d", tc.err, rec.Code, tc.want)
		}
	}
}
