// ./main.go
package main

import (
	"github.com/xkilldash9x/merchant-enroll/cmd"
)

func main() {
	cmd.Execute()
}
