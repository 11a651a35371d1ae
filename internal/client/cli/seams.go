package cli

import "github.com/dmitrijs2005/spendsmart/internal/common"

// getSimpleText, getPassword and getConfirmation are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var (
	getSimpleText   = GetSimpleText
	getPassword     = GetPassword
	getConfirmation = GetConfirmation
	wipe            = common.WipeByteArray
)
