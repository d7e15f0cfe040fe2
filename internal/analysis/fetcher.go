package analysis

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/chromedp/chromedp"
)

// PageFetcher retrieves a rendered page for auditing.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// ChromeFetcher fetches pages through headless Chrome so that
// client-rendered blogs are audited as readers see them.
type ChromeFetcher struct{}

// Fetch navigates to url and extracts the title, body text, and heading
// count after the page settles.
func (ChromeFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	if _, err := exec.LookPath("chromium-browser"); err != nil {
		if _, fallbackErr := exec.LookPath("chromium"); fallbackErr != nil {
			return Page{}, fmt.Errorf("chromium not installed")
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var title, text string
	var headingCount int
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Title(&title),
		chromedp.Evaluate(`document.body.innerText`, &text),
		chromedp.Evaluate(`document.querySelectorAll("h1,h2,h3,h4,h5,h6").length`, &headingCount),
	)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", url, err)
	}

	return Page{
		URL:          url,
		Title:        title,
		Text:         text,
		HeadingCount: headingCount,
	}, nil
}
