package system

import "fmt"

var Name = "platformctl"
var Version = "<unset>"
var Commit = "<unset>"
var Repository = "https://github.com/exampletech/platformctl"

func PrettyInfo() string {
	return fmt.Sprintf(`Application: %s
Version:     %s
Commit:      %s
Source:      %s/tree/%s
`, Name, Version, Commit, Repository, Commit)
}
