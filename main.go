// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/invowk/pybundle/cmd/pybundle"

func main() {
	cmd.Execute()
}
