package main

import (
	"fmt"

	"github.com/openmined/syftbox-client/internal/client/config"
	"github.com/openmined/syftbox-client/internal/syftsdk"
)

// readValidConfig loads and validates the config at path. With checkToken
// set it also requires a usable refresh token, so callers can tell
// "logged in" apart from "has a stale config".
func readValidConfig(path string, checkToken bool) (*config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if checkToken {
		claims, err := syftsdk.ParseToken(cfg.RefreshToken, syftsdk.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		if err := claims.Validate(cfg.Email); err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
	}

	return cfg, nil
}

func logConfig(cfg *config.Config) {
	fmt.Println(lightGray.Render("SYFTBOX DATASITE CONFIG"))
	fmt.Printf("%s%s\n", gray.Render("Email   "), green.Render(cfg.Email))
	fmt.Printf("%s%s\n", gray.Render("Data    "), cyan.Render(cfg.DataDir))
	fmt.Printf("%s%s\n", gray.Render("Server  "), cyan.Render(cfg.ServerURL))
	fmt.Printf("%s%s\n", gray.Render("Config  "), cyan.Render(cfg.Path))
}
