package main

import "github.com/boring-ventures/billiards-managementV1-sub001/cmd/billiardsd/cmd"

func main() {
	cmd.Execute()
}
