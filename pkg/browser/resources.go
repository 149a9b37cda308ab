package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyResourceBlocking intercepts the page's requests and fails those whose
// resource type is in types. Documents, frames and scripts always pass.
func applyResourceBlocking(page *rod.Page, types []string) *rod.HijackRouter {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, ctx.Request.Type()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	go router.Run()
	return router
}

func shouldBlock(blockSet map[string]bool, resType proto.NetworkResourceType) bool {
	switch resType {
	case proto.NetworkResourceTypeImage:
		return blockSet["images"]
	case proto.NetworkResourceTypeFont:
		return blockSet["fonts"]
	case proto.NetworkResourceTypeMedia:
		return blockSet["media"]
	case proto.NetworkResourceTypeStylesheet:
		return blockSet["stylesheets"]
	case proto.NetworkResourceTypeDocument, proto.NetworkResourceTypeScript:
		return false
	}
	return blockSet[strings.ToLower(string(resType))]
}
