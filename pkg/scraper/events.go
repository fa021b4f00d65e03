package scraper

import (
	"fanslydl/pkg/fetcher"
	"fanslydl/pkg/media"
)

// Observer receives progress events from the orchestrator
type Observer interface {
	CreatorStarted(creator string)
	SourceStarted(creator string, source media.Source)
	ItemDone(creator string, d media.Descriptor, r fetcher.Result)
	CreatorFinished(stats *CreatorStats)
}

type nopObserver struct{}

func (nopObserver) CreatorStarted(string)                             {}
func (nopObserver) SourceStarted(string, media.Source)                {}
func (nopObserver) ItemDone(string, media.Descriptor, fetcher.Result) {}
func (nopObserver) CreatorFinished(*CreatorStats)                     {}
