// Package upload drives a marketplace's publish form step by step. Every
// automated step verifies its own effect and falls back to the operator when
// the form does not take the write.
package upload

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlopezr/crosslist/internal/abort"
	"github.com/mlopezr/crosslist/internal/browser"
	"github.com/mlopezr/crosslist/internal/listing"
	"github.com/mlopezr/crosslist/internal/marketplace"
)

// Prompter is the operator channel for manual fallbacks. Pause blocks until
// the operator confirms they finished the step in the visible browser.
type Prompter interface {
	Pause(msg string) error
	// ChooseDescription resolves a conflict between a marketplace-generated
	// description draft and the scraped one.
	ChooseDescription(generated, scraped string) (keepGenerated bool, err error)
}

type Machine struct {
	prompter         Prompter
	token            *abort.Token
	domWait          time.Duration
	categoryAttempts int
}

func NewMachine(prompter Prompter, token *abort.Token, domWait time.Duration, categoryAttempts int) *Machine {
	return &Machine{
		prompter:         prompter,
		token:            token,
		domWait:          domWait,
		categoryAttempts: categoryAttempts,
	}
}

// Run walks the adapter's upload sequence on an already-open publish page.
// It returns abort.ErrAborted as soon as cancellation is requested between
// steps; the form is left in whatever state it reached.
func (m *Machine) Run(s browser.Session, a *marketplace.Adapter, l *listing.Listing) error {
	log.Info().Str("marketplace", a.ID).Str("title", l.Title).Msg("filling upload form")

	for _, step := range a.Config.Sequence {
		if err := m.token.Err(); err != nil {
			return err
		}
		log.Debug().Str("step", string(step)).Msg("upload step")

		var err error
		switch step {
		case marketplace.StepImages:
			err = m.fillImages(s, a, l)
		case marketplace.StepTitle:
			// The title goes in verbatim. NormalizeTitle only cleans candidate
			// feed titles during duplicate detection.
			err = m.fillField(s, a.Config.Upload.Title, "title", l.Title, func(got string) bool {
				return got == l.Title
			})
		case marketplace.StepDescription:
			err = m.fillDescription(s, a, l)
		case marketplace.StepPrice:
			price := NormalizePrice(l.Price)
			err = m.fillField(s, a.Config.Upload.Price, "price", price, func(got string) bool {
				return strings.Contains(got, price)
			})
		case marketplace.StepCategory:
			err = m.selectCategory(s, a)
		case marketplace.StepContinue:
			err = m.pressContinue(s, a)
		default:
			err = fmt.Errorf("unknown upload step %q", step)
		}
		if err != nil {
			return err
		}
	}

	log.Info().Str("marketplace", a.ID).Msg("upload form filled, review and publish in the browser")
	return nil
}

// NormalizePrice strips currency symbols and converts a decimal comma, so
// "25,99 €" becomes "25.99".
func NormalizePrice(price string) string {
	p := strings.NewReplacer("€", "", "EUR", "").Replace(price)
	p = strings.TrimSpace(p)
	return strings.ReplaceAll(p, ",", ".")
}

// fillImages feeds the local image files into the form's file input and
// waits for a preview to render as confirmation.
func (m *Machine) fillImages(s browser.Session, a *marketplace.Adapter, l *listing.Listing) error {
	input, err := s.WaitElement(a.Config.Upload.FileInput, m.domWait)
	if err == nil {
		err = input.SetFiles(l.Images)
	}
	if err == nil && a.Config.Upload.ImagePreview != "" {
		_, err = s.WaitElement(a.Config.Upload.ImagePreview, m.domWait)
	}
	if err == nil {
		log.Info().Int("count", len(l.Images)).Msg("images attached")
		return nil
	}

	log.Warn().Err(err).Msg("automated image upload failed")
	return m.prompter.Pause("could not attach the images automatically, add them in the browser and press enter")
}

// fillField writes value into the field at sel and reads it back. If the
// write does not stick the operator takes over; their confirmation is
// trusted without a re-read.
func (m *Machine) fillField(s browser.Session, sel, label, value string, ok func(got string) bool) error {
	el, err := s.WaitElement(sel, m.domWait)
	if err == nil {
		if err := el.SetText(value); err != nil {
			log.Warn().Err(err).Str("field", label).Msg("failed to type into field")
		}
		if got, err := el.Value(); err == nil && ok(got) {
			log.Debug().Str("field", label).Msg("field filled")
			return nil
		}
	} else {
		log.Warn().Err(err).Str("field", label).Msg("field not found")
	}

	return m.prompter.Pause(fmt.Sprintf("could not fill the %s automatically, fill it in the browser and press enter", label))
}

func (m *Machine) fillDescription(s browser.Session, a *marketplace.Adapter, l *listing.Listing) error {
	desc := l.Description

	if a.Config.GeneratedDescription {
		// The marketplace pre-fills a generated draft from the photos. Let the
		// operator pick between the draft and the scraped text.
		if el, err := s.WaitElement(a.Config.Upload.Description, m.domWait); err == nil {
			if generated, err := el.Value(); err == nil && strings.TrimSpace(generated) != "" {
				keep, err := m.prompter.ChooseDescription(generated, desc)
				if err != nil {
					return err
				}
				if keep {
					log.Info().Msg("keeping generated description")
					return nil
				}
			}
		}
	}

	return m.fillField(s, a.Config.Upload.Description, "description", desc, func(got string) bool {
		return strings.Contains(got, desc)
	})
}

// selectCategory opens the category picker and accepts the first suggested
// option. Some forms need several tries before the picker closes, so the
// open-state attribute is polled between attempts.
func (m *Machine) selectCategory(s browser.Session, a *marketplace.Adapter) error {
	field, err := s.WaitElement(a.Config.Upload.Category, m.domWait)
	if err != nil {
		log.Warn().Err(err).Msg("category field not found")
		return m.prompter.Pause("could not find the category field, pick a category in the browser and press enter")
	}
	if err := field.Click(); err != nil {
		log.Warn().Err(err).Msg("failed to open category picker")
		return m.prompter.Pause("could not open the category picker, pick a category in the browser and press enter")
	}

	for attempt := 0; attempt < m.categoryAttempts; attempt++ {
		if !m.token.Sleep(200 * time.Millisecond) {
			return abort.ErrAborted
		}
		if opt, err := s.Element(a.Config.Upload.CategoryOption); err == nil {
			if err := opt.Click(); err != nil {
				log.Debug().Err(err).Int("attempt", attempt+1).Msg("category option click failed")
				continue
			}
		}
		if a.Config.CategoryOpenAttr == "" {
			return nil
		}
		// The picker reports whether it is still open; closed means a
		// category was accepted.
		open, err := field.Attribute(a.Config.CategoryOpenAttr)
		if err != nil || open != "true" {
			log.Debug().Int("attempt", attempt+1).Msg("category selected")
			return nil
		}
	}

	log.Warn().Int("attempts", m.categoryAttempts).Msg("category picker would not settle")
	return m.prompter.Pause("could not select a category automatically, pick one in the browser and press enter")
}

// pressContinue clicks the page's advance button, waiting for it to become
// enabled first. When several elements match, later ones are preferred since
// forms tend to put the real submit at the bottom.
func (m *Machine) pressContinue(s browser.Session, a *marketplace.Adapter) error {
	els, err := s.Elements(a.Config.Upload.ContinueButton)
	if err != nil || len(els) == 0 {
		log.Warn().Err(err).Msg("continue button not found")
		return m.prompter.Pause("could not find the continue button, advance the form in the browser and press enter")
	}

	for i := len(els) - 1; i >= 0; i-- {
		btn := els[i]
		if err := m.waitEnabled(btn); err != nil {
			return err
		}
		if enabled, err := btn.Enabled(); err != nil || !enabled {
			continue
		}
		if err := btn.Click(); err == nil {
			log.Debug().Msg("continue pressed")
			return nil
		}
	}

	return m.prompter.Pause("could not press the continue button, advance the form in the browser and press enter")
}

func (m *Machine) waitEnabled(el browser.Element) error {
	deadline := time.Now().Add(m.domWait)
	for {
		enabled, err := el.Enabled()
		if err != nil || enabled {
			return nil
		}
		if time.Now().After(deadline) {
			return nil
		}
		if !m.token.Sleep(200 * time.Millisecond) {
			return abort.ErrAborted
		}
	}
}
