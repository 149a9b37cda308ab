// Package scraper is the per-ID scraping engine for the legacy document
// pages.
//
// A run establishes one authenticated Session, then for every selected
// document type walks a closed ID range in ascending order:
//
//   - the Iterator owns a single render Surface at a time and replaces it
//     after RecycleEvery documents (50 by default), closing the old surface
//     before the new one is created;
//   - ResolveFrame finds the rendering context holding the type's marker,
//     probing the top-level page first and then scanning nested frames;
//   - the type's extractor turns a snapshot of that frame into records;
//   - processDocument turns anything that goes wrong, panics included, into a
//     failed Outcome so the loop always moves on to the next ID.
//
// Every ID ends as success, empty or failed. Only session and surface
// failures abort a run. No ID is ever retried.
//
// Usage:
//
//	s := scraper.New(browser, scraper.OptionsFromConfig(cfg), log)
//	datasets, err := s.Run(ctx, creds, types, 100, 200)
//
// The package talks to the browser only through the Browser, Surface and
// Frame interfaces; pkg/browser provides the go-rod implementation.
package scraper
