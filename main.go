package main

import "github.com/Emolus-Dev/payments/cmd"

func main() {
	cmd.Execute()
}
