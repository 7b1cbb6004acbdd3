package marketplace

import (
	"strings"

	"github.com/mlopezr/crosslist/internal/browser"
)

// Wallapop returns the adapter for wallapop.com.
func Wallapop() *Adapter {
	a := &Adapter{
		ID: "wallapop",
		Config: Config{
			HostPatterns:  []string{"wallapop."},
			HomeURL:       "https://es.wallapop.com",
			ProfileURL:    "https://es.wallapop.com/app/catalog/published",
			UploadURL:     "https://es.wallapop.com/app/catalog/upload/consumer-goods",
			LoginSelector: "img[data-testid='user-avatar']",
			Collect: CollectSelectors{
				Title:           "h1",
				Price:           "span[class*='Price']",
				Description:     "meta[name='og:description']",
				DescriptionAttr: "content",
				Images:          "img",
			},
			Check: CheckSelectors{
				Items: "tsl-catalog-item",
				Title: ".info-title",
				Href:  "a.item-details",
				Image: "div.ItemAvatar",
			},
			Upload: UploadSelectors{
				Title:          "#summary",
				Description:    "#description",
				Price:          "#sale_price",
				Category:       "div.walla-dropdown__inner-input[aria-label='Categoría y subcategoría']",
				CategoryOption: "div.sc-walla-dropdown-item",
				FileInput:      "input[type='file']",
				ImagePreview:   "img[src^='data:']",
				ContinueButton: "walla-button[data-testid='continue-button']",
			},
			// Multi-page wizard: the title page must be confirmed before the
			// image uploader appears, and again before the detail fields.
			Sequence: []Step{
				StepTitle, StepContinue,
				StepImages, StepContinue,
				StepCategory, StepDescription, StepPrice,
			},
			CategoryOpenAttr: "aria-expanded",
		},
		ImageFilter: func(src string) bool {
			return strings.Contains(src, "cdn.wallapop.com") && strings.Contains(src, "W640")
		},
	}

	a.CandidateTitle = func(el browser.Element) string {
		return childText(el, a.Config.Check.Title)
	}
	a.CandidateHref = func(el browser.Element) string {
		return childAttr(el, a.Config.Check.Href, "href")
	}
	a.CandidateImage = func(el browser.Element) string {
		// Feed thumbnails are CSS background images, not <img> tags.
		avatar, err := el.Element(a.Config.Check.Image)
		if err != nil {
			return ""
		}
		return backgroundImageURL(avatar)
	}

	return a
}
