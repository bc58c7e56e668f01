package main

import (
	"os"

	"github.com/SscSPs/pfm_backend/internal/commands"
)

// @title PFM Backend API
// @version 1.0
// @description Personal finance ledger: accounts, transactions and recurring transactions.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
