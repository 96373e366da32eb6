package main

import "rsi-swap-bot/internal/cli"

func main() {
	cli.Execute()
}
