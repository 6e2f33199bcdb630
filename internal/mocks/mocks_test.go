// internal/mocks/mocks_test.go
package mocks

import (
	"github.com/xkilldash9x/merchant-enroll/internal/browser"
)

// Compile-time checks that the mocks stay in step with the interfaces.
var (
	_ browser.Handle         = (*MockHandle)(nil)
	_ browser.PageDriver     = (*MockPage)(nil)
	_ browser.ResponseWaiter = (*MockWaiter)(nil)
	_ browser.Requester      = (*MockRequester)(nil)
)
