package session

import (
	"time"

	"github.com/otherjamesbrown/vidtwin-cli/pkg/transcript"
)

// showBannerLocked replaces the banner and re-arms its dismissal timer.
func (c *Controller) showBannerLocked(level Level, message string) {
	c.banner = Banner{Message: message, Level: level}
	c.bannerSeq++
	seq := c.bannerSeq

	if c.bannerTimer != nil {
		c.bannerTimer.Stop()
	}
	c.bannerTimer = time.AfterFunc(c.ttl, func() { c.dismissBanner(seq) })
	c.render.RenderBanner(c.banner)
}

func (c *Controller) dismissBanner(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.bannerSeq {
		return
	}
	c.banner = Banner{}
	c.render.ClearBanner()
}

// Banner returns the visible banner; Message is empty when none is shown.
func (c *Controller) Banner() Banner {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

type nopRenderer struct{}

func (nopRenderer) RenderState(State)                     {}
func (nopRenderer) RenderBusy(Action, bool)               {}
func (nopRenderer) RenderBanner(Banner)                   {}
func (nopRenderer) ClearBanner()                          {}
func (nopRenderer) RenderView(View)                       {}
func (nopRenderer) RenderTranscript([]transcript.Segment) {}
func (nopRenderer) RenderTranscriptError(string)          {}
func (nopRenderer) RenderHighlights([]int, int)           {}
func (nopRenderer) RenderWelcome(Welcome)                 {}
func (nopRenderer) RenderTurn(ChatTurn)                   {}
func (nopRenderer) RenderTyping(bool)                     {}
