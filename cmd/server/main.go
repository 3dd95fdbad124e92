package main

import (
	"github.com/medkiosk/voice/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
