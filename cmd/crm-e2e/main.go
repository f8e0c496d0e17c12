// Package main is the entry point for the crm-e2e tool
package main

import "github.com/crmqa/crm-e2e/cmd"

func main() {
	cmd.Execute()
}
