/*
Copyright © 2026 Deutsche Telekom AG
*/
package main

import (
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/exampletech/platformctl/cmd"
)

func main() {
	cmd.Execute()
}
