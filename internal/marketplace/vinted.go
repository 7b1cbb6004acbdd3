package marketplace

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mlopezr/crosslist/internal/browser"
	"github.com/rs/zerolog/log"
)

var vintedUserIDRe = regexp.MustCompile(`"userId":"?(\d+)"?|consentId=(\d+)`)

// Vinted returns the adapter for vinted.es.
func Vinted() *Adapter {
	a := &Adapter{
		ID: "vinted",
		Config: Config{
			HostPatterns:  []string{"vinted."},
			HomeURL:       "https://www.vinted.es/",
			ProfileURL:    "https://www.vinted.es/member/",
			UploadURL:     "https://www.vinted.es/items/new",
			LoginSelector: "button#user-menu-button",
			Collect: CollectSelectors{
				Title:       "h1",
				Price:       "div[data-testid='item-price']",
				Description: "div[itemprop='description']",
				FirstImage:  "img[data-testid^='item-photo']",
				Images:      "img[data-testid='image-carousel-image-shown'], img[data-testid='image-carousel-image']",
			},
			Check: CheckSelectors{
				Items: "div[data-testid='grid-item']",
				Title: "a.new-item-box__overlay--clickable",
				Href:  "a.new-item-box__overlay--clickable",
				Image: "img.web_ui__Image__content",
			},
			Upload: UploadSelectors{
				Title:          "#title",
				Description:    "#description",
				Price:          "#price",
				Category:       "#category",
				CategoryOption: "[id^='catalog-suggestion-']",
				FileInput:      "input[type='file']",
				ImagePreview:   "img[data-testid^='media-item']",
				ContinueButton: "button[data-testid='upload-form-save-button']",
			},
			Sequence: []Step{StepImages, StepTitle, StepDescription, StepCategory, StepPrice},
		},
		NormalizeTitle: VintedTitleShorten,
	}

	a.ProfileURL = func(s browser.Session) (string, error) {
		// The member page URL needs the numeric user id, which only appears
		// embedded in the homepage markup.
		html, err := s.HTML()
		if err != nil {
			return "", fmt.Errorf("failed to read page source: %w", err)
		}
		m := vintedUserIDRe.FindStringSubmatch(html)
		if m == nil {
			return "", fmt.Errorf("could not extract vinted user id")
		}
		id := m[1]
		if id == "" {
			id = m[2]
		}
		log.Debug().Str("userId", id).Msg("resolved vinted profile")
		return a.Config.ProfileURL + id, nil
	}

	a.CandidateTitle = func(el browser.Element) string {
		raw := childAttr(el, a.Config.Check.Title, "title")
		return VintedTitleShorten(strings.TrimSpace(raw))
	}
	a.CandidateHref = func(el browser.Element) string {
		return childAttr(el, a.Config.Check.Href, "href")
	}
	a.CandidateImage = func(el browser.Element) string {
		src := childAttr(el, a.Config.Check.Image, "src")
		return strings.SplitN(src, "?", 2)[0]
	}

	return a
}

// VintedTitleShorten strips the metadata tail vinted appends to grid-item
// titles ("Jacket, size M, brand: ..."): everything from the comma preceding
// the first colon onward is dropped.
func VintedTitleShorten(raw string) string {
	if raw == "" {
		return raw
	}
	colon := strings.Index(raw, ":")
	if colon == -1 {
		return strings.TrimSpace(raw)
	}
	if comma := strings.LastIndex(raw[:colon], ","); comma != -1 {
		return strings.TrimSpace(raw[:comma])
	}
	return strings.TrimSpace(raw[:colon])
}
