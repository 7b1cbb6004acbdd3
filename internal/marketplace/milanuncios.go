package marketplace

import (
	"strings"

	"github.com/mlopezr/crosslist/internal/browser"
)

// Milanuncios returns the adapter for milanuncios.com.
func Milanuncios() *Adapter {
	a := &Adapter{
		ID: "milanuncios",
		Config: Config{
			HostPatterns:  []string{"milanuncios."},
			HomeURL:       "https://www.milanuncios.com",
			ProfileURL:    "https://www.milanuncios.com/mis-anuncios",
			UploadURL:     "https://www.milanuncios.com/publicar-anuncios-gratis/",
			LoginSelector: "p.ma-AdProfileMyAds-dataContainer-name",
			Collect: CollectSelectors{
				Title:       "h1",
				Price:       "span.ma-AdPrice-value",
				Description: "p.ma-AdDetail-description",
				Images:      "img[data-testid='SHARED_SLIDER_IMAGES']",
			},
			Check: CheckSelectors{
				Items: "div.ma-AdCardV2",
				Title: "a.ma-AdCardV2-titleLink",
				Href:  "a.ma-AdCardV2-titleLink",
				Image: "img.ma-AdCardV2-photo",
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
			Sequence: []Step{
				StepTitle, StepContinue,
				StepImages, StepContinue,
				StepCategory, StepDescription, StepPrice,
			},
			// The site pre-fills the description with an AI draft; the
			// operator decides between it and the scraped text.
			GeneratedDescription: true,
			CategoryOpenAttr:     "aria-expanded",
		},
		ImageFilter: func(src string) bool {
			return strings.Contains(src, "images.milanuncios.com") && strings.Contains(src, "rule=detail_640x480")
		},
	}

	a.CandidateTitle = func(el browser.Element) string {
		return childText(el, a.Config.Check.Title)
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
