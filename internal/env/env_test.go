package env

import (
	"reflect"
	"testing"

	"github.com/spf13/afero"
)

func TestLoadLayersAndExpands(t *testing.T) {
	t.Setenv("LAUNCHR_TEST_BASE", "/opt/gl")
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/cfg/game.env", []byte(`
# graphics
export MESA_GL_VERSION_OVERRIDE="4.5"
LIB=${LAUNCHR_TEST_BASE}/lib
OVERRIDDEN=file
`), 0o644)

	v, err := Load(fs, []string{"/cfg/game.env"}, []string{"OVERRIDDEN=list", "LD=${LIB}:x", "bad"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{
		"LD=/opt/gl/lib:x",
		"LIB=/opt/gl/lib",
		"MESA_GL_VERSION_OVERRIDE=4.5",
		"OVERRIDDEN=list",
	}
	if got := v.Slice(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", v.Slice(), want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(afero.NewMemMapFs(), []string{"/nope.env"}, nil); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestSelfReferenceUsesOSValue(t *testing.T) {
	t.Setenv("PATHLIKE", "/bin")
	v, err := Load(afero.NewMemMapFs(), nil, []string{"PATHLIKE=/extra:${PATHLIKE}"})
	if err != nil {
		t.Fatal(err)
	}
	if v["PATHLIKE"] != "/extra:/bin" {
		t.Fatalf("PATHLIKE = %q", v["PATHLIKE"])
	}
}
