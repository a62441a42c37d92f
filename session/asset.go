package session

import (
	_ "embed"

	"github.com/jesspatton/livetest/engine"
)

// UnlockScriptPath is where the engine serves the page-side unlock handler.
const UnlockScriptPath = "/livetest.js"

//go:embed client/livetest.js
var unlockScript []byte

// UnlockAsset returns the page-side script enabling the unlock-page command.
func UnlockAsset() engine.Asset {
	return engine.Asset{
		Path:        UnlockScriptPath,
		ContentType: "application/javascript",
		Content:     unlockScript,
	}
}
