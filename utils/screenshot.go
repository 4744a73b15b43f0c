package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-jobharvest/internal/browser"
)

// ScreenShotDebugger saves a screenshot and an HTML dump of a page when a session fails
type ScreenShotDebugger struct {
	outputDir string
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewScreenShotDebugger(outputDir string, log logrus.FieldLogger) *ScreenShotDebugger {
	return &ScreenShotDebugger{
		outputDir: outputDir,
		log:       log,
		now:       time.Now,
	}
}

// Capture writes <name>_<timestamp>.png and .html and returns the paths it managed to write.
// Either may be empty; a failed capture never masks the error being diagnosed.
func (s *ScreenShotDebugger) Capture(page browser.Page, name, message string) (shot, dump string) {
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		s.log.Warnf("⚠️ Failed to create debug dir: %v", err)
		return "", ""
	}

	timestamp := s.now().Format("2006-01-02_15-04-05")
	base := filepath.Join(s.outputDir, fmt.Sprintf("%s_%s", sanitize(name), timestamp))
	s.log.Infof("📸 %s", message)

	//Take screenshot
	if err := page.Screenshot(base + ".png"); err != nil {
		s.log.Warnf("⚠️ Failed to capture screenshot: %v", err)
	} else {
		shot = base + ".png"
		s.log.Infof("   Screenshot saved: %s", shot)
	}

	//Dump HTML
	html, err := page.Content()
	if err != nil {
		s.log.Warnf("⚠️ Failed to read page content: %v", err)
		return shot, ""
	}
	if err := os.WriteFile(base+".html", []byte(html), 0644); err != nil {
		s.log.Warnf("⚠️ Failed to write HTML dump: %v", err)
		return shot, ""
	}
	dump = base + ".html"
	s.log.Infof("   HTML saved: %s", dump)
	return shot, dump
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
