package browser

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultConsentButtons are tried in order when a site does not name its own button.
var DefaultConsentButtons = []string{
	`button[data-action="init--explicit-consent-modal#accept"]`,
	`button[aria-label*="accept" i]`,
	`button:has-text("Accept")`,
	`button:has-text("I agree")`,
	`.accept-cookies`,
	`#accept-cookies`,
}

// DismissConsent clicks away a cookie/consent overlay. A missing overlay is not an error;
// the return value only says whether something was dismissed.
func DismissConsent(ctx context.Context, page Page, modal string, buttons []string, log logrus.FieldLogger) bool {
	if modal != "" {
		present, err := page.Exists(modal)
		if err != nil || !present {
			log.Debugf("no consent modal %q on page", modal)
			return false
		}
	}

	if len(buttons) == 0 {
		buttons = DefaultConsentButtons
	}

	for _, sel := range buttons {
		//engines without playwright's :has-text reject some selectors; skip those
		found, err := page.Exists(sel)
		if err != nil || !found {
			continue
		}
		if err := page.Click(ctx, sel); err != nil {
			log.Debugf("consent button %q not clickable: %v", sel, err)
			continue
		}
		log.Infof("🍪 Accepted cookie consent via %s", sel)
		return true
	}

	if modal != "" {
		script := fmt.Sprintf("document.querySelectorAll(%s).forEach(el => el.remove())", jsString(modal))
		if _, err := page.Evaluate(script); err == nil {
			log.Infof("🍪 Removed consent modal %s", modal)
			return true
		}
	}

	log.Debug("no consent overlay dismissed")
	return false
}
