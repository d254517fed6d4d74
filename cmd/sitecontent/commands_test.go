package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
)

type cliEnv struct {
	dir  string
	args []string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	return &cliEnv{
		dir: dir,
		args: []string{
			"--database", "sqlite://" + filepath.Join(dir, "site.db"),
			"--storage", "file://" + filepath.Join(dir, "assets"),
		},
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, e.args...))
	err := cmd.Execute()
	return out.String(), err
}

func decodeSlot(t *testing.T, out string) sitecontent.Slot {
	t.Helper()
	var slot sitecontent.Slot
	require.NoError(t, json.Unmarshal([]byte(out), &slot))
	return slot
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "hero image.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 3))))
	return path
}

func TestCLI_PutAndGet(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "put", "home", "hero", "--set", "title_1=Spring Show", "--set", "link_1=/shows")
	require.NoError(t, err)
	slot := decodeSlot(t, out)
	assert.Equal(t, "Spring Show", *slot.Title1)

	_, err = env.run(t, "put", "home", "hero", "--clear", "link_1", "--set", "title_2=Opening night")
	require.NoError(t, err)

	out, err = env.run(t, "get", "home", "hero")
	require.NoError(t, err)
	slot = decodeSlot(t, out)
	assert.Equal(t, "Spring Show", *slot.Title1)
	assert.Equal(t, "Opening night", *slot.Title2)
	require.NotNil(t, slot.Link1)
	assert.Equal(t, "", *slot.Link1)
	assert.Nil(t, slot.Image1)
}

func TestCLI_PutImage(t *testing.T) {
	env := newCLIEnv(t)
	path := writePNG(t, env.dir)

	out, err := env.run(t, "put", "portfolio", "hero", "--image", path, "--image", "image_2="+path)
	require.NoError(t, err)

	slot := decodeSlot(t, out)
	require.NotNil(t, slot.Image1)
	require.NotNil(t, slot.Image2)
	assert.True(t, strings.HasPrefix(*slot.Image1, "/dynamic-parts/"))
	assert.True(t, strings.HasSuffix(*slot.Image1, "hero_image.png"))

	entries, err := os.ReadDir(filepath.Join(env.dir, "assets"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCLI_List(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "list", "about")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	_, err = env.run(t, "put", "about", "overview", "--set", "description=Hello")
	require.NoError(t, err)
	_, err = env.run(t, "put", "about", "hero", "--set", "title_1=About")
	require.NoError(t, err)

	out, err = env.run(t, "list", "about")
	require.NoError(t, err)
	var slots []sitecontent.Slot
	require.NoError(t, json.Unmarshal([]byte(out), &slots))
	require.Len(t, slots, 2)
	assert.Equal(t, "hero", slots[0].Key)
	assert.Equal(t, "overview", slots[1].Key)
}

func TestCLI_Errors(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing slot", args: []string{"get", "home", "hero"}, want: "not found"},
		{name: "nothing to write", args: []string{"put", "home", "hero"}, want: "nothing to write"},
		{name: "malformed set", args: []string{"put", "home", "hero", "--set", "title_1"}, want: "expected field=value"},
		{name: "unknown field", args: []string{"put", "home", "hero", "--set", "subtitle=x"}, want: "unknown slot field"},
		{name: "missing image", args: []string{"put", "home", "hero", "--image", "/nonexistent.png"}, want: "failed to open image"},
		{name: "duplicate image field", args: []string{"put", "home", "hero", "--image", "a.png", "--image", "image_1=b.png"}, want: "more than one image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCLI_MigrateSQLite(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations applied")
}
