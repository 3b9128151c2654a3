package main

import (
	"go.uber.org/fx"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/app"
)

func main() {
	fx.New(app.CreateApp()).Run()
}
