package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Filesystem("create versions dir", fs.ErrPermission)
	err := fmt.Errorf("provision: %w", base)
	if got := KindOf(err); got != KindFilesystem {
		t.Fatalf("KindOf = %q, want %q", got, KindFilesystem)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("cause not preserved: %v", err)
	}
	if !errors.Is(err, &Error{Kind: KindFilesystem}) {
		t.Fatalf("errors.Is by kind failed")
	}
	if errors.Is(err, &Error{Kind: KindNetwork}) {
		t.Fatalf("errors.Is matched wrong kind")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(nil) != "" {
		t.Fatalf("nil error must have empty kind")
	}
	if KindOf(errors.New("boom")) != KindUnclassified {
		t.Fatalf("plain error should be unclassified")
	}
}

func TestFailEnvelope(t *testing.T) {
	env := Fail(Network("download manifest", errors.New("timeout")))
	if env.OK || env.Error == nil {
		t.Fatalf("expected failure envelope: %+v", env)
	}
	if env.Error.Kind != KindNetwork || !env.Error.Retryable {
		t.Fatalf("unexpected body: %+v", env.Error)
	}

	env = Fail(RuntimeNotFound(""))
	if env.Error.Retryable {
		t.Fatalf("missing runtime must not be retryable")
	}
	if env.Error.Message == "" {
		t.Fatalf("message must be user actionable")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		"":                  http.StatusOK,
		KindConflict:        http.StatusConflict,
		KindVersionNotFound: http.StatusNotFound,
		KindLaunch:          http.StatusInternalServerError,
		KindInvalid:         http.StatusBadRequest,
	}
	for k, want := range cases {
		if got := HTTPStatus(k); got != want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", k, got, want)
		}
	}
}
