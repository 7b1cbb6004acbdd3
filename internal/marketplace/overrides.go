package marketplace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Override is a partial Config loaded from the operator's marketplaces file.
// Selectors break whenever a site ships a redesign, so they can be patched
// without a rebuild; empty fields leave the built-in value untouched.
type Override struct {
	HomeURL       string            `yaml:"home_url"`
	ProfileURL    string            `yaml:"profile_url"`
	UploadURL     string            `yaml:"upload_url"`
	LoginSelector string            `yaml:"login_selector"`
	Collect       *CollectSelectors `yaml:"collect"`
	Check         *CheckSelectors   `yaml:"check"`
	Upload        *UploadSelectors  `yaml:"upload"`
	Sequence      []Step            `yaml:"sequence"`
}

// ApplyOverridesFile reads a YAML file mapping marketplace ids to overrides
// and patches the registered adapters. Unknown ids are an error so typos do
// not silently do nothing.
func ApplyOverridesFile(r *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read marketplaces file: %w", err)
	}

	overrides := make(map[string]Override)
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse marketplaces file: %w", err)
	}

	for id, o := range overrides {
		a, err := r.Resolve(id)
		if err != nil {
			return err
		}
		applyOverride(&a.Config, o)
	}
	return nil
}

func applyOverride(c *Config, o Override) {
	setIfPresent(&c.HomeURL, o.HomeURL)
	setIfPresent(&c.ProfileURL, o.ProfileURL)
	setIfPresent(&c.UploadURL, o.UploadURL)
	setIfPresent(&c.LoginSelector, o.LoginSelector)

	if o.Collect != nil {
		setIfPresent(&c.Collect.Title, o.Collect.Title)
		setIfPresent(&c.Collect.Price, o.Collect.Price)
		setIfPresent(&c.Collect.Description, o.Collect.Description)
		setIfPresent(&c.Collect.DescriptionAttr, o.Collect.DescriptionAttr)
		setIfPresent(&c.Collect.FirstImage, o.Collect.FirstImage)
		setIfPresent(&c.Collect.Images, o.Collect.Images)
	}
	if o.Check != nil {
		setIfPresent(&c.Check.Items, o.Check.Items)
		setIfPresent(&c.Check.Title, o.Check.Title)
		setIfPresent(&c.Check.Href, o.Check.Href)
		setIfPresent(&c.Check.Image, o.Check.Image)
	}
	if o.Upload != nil {
		setIfPresent(&c.Upload.Title, o.Upload.Title)
		setIfPresent(&c.Upload.Description, o.Upload.Description)
		setIfPresent(&c.Upload.Price, o.Upload.Price)
		setIfPresent(&c.Upload.Category, o.Upload.Category)
		setIfPresent(&c.Upload.CategoryOption, o.Upload.CategoryOption)
		setIfPresent(&c.Upload.FileInput, o.Upload.FileInput)
		setIfPresent(&c.Upload.ImagePreview, o.Upload.ImagePreview)
		setIfPresent(&c.Upload.ContinueButton, o.Upload.ContinueButton)
	}
	if len(o.Sequence) > 0 {
		c.Sequence = o.Sequence
	}
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
