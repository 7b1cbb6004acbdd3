package marketplace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverridesFile(t *testing.T) {
	content := `
vinted:
  login_selector: "button#new-user-menu"
  check:
    items: "div[data-testid='closet-item']"
  sequence: [images, title, price]
wallapop:
  upload_url: "https://es.wallapop.com/app/upload/v2"
`
	path := filepath.Join(t.TempDir(), "marketplaces.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r := Defaults()
	require.NoError(t, ApplyOverridesFile(r, path))

	v, _ := r.Resolve("vinted")
	assert.Equal(t, "button#new-user-menu", v.Config.LoginSelector)
	assert.Equal(t, "div[data-testid='closet-item']", v.Config.Check.Items)
	// untouched fields keep their built-in values
	assert.Equal(t, "a.new-item-box__overlay--clickable", v.Config.Check.Title)
	assert.Equal(t, "https://www.vinted.es/items/new", v.Config.UploadURL)
	assert.Equal(t, []Step{StepImages, StepTitle, StepPrice}, v.Config.Sequence)

	w, _ := r.Resolve("wallapop")
	assert.Equal(t, "https://es.wallapop.com/app/upload/v2", w.Config.UploadURL)
}

func TestApplyOverridesFileUnknownID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketplaces.yml")
	require.NoError(t, os.WriteFile(path, []byte("olx:\n  home_url: https://olx.pt\n"), 0o644))

	err := ApplyOverridesFile(Defaults(), path)
	assert.ErrorIs(t, err, ErrUnsupportedMarketplace)
}

func TestApplyOverridesFileMissing(t *testing.T) {
	err := ApplyOverridesFile(Defaults(), filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
