package main

// Alert provider blank imports. Each import registers a notifier factory
// that alerts.providers can name.

import (
	_ "github.com/Strob0t/GovForge/internal/adapter/discord"
	_ "github.com/Strob0t/GovForge/internal/adapter/email"
	_ "github.com/Strob0t/GovForge/internal/adapter/slack"
)
