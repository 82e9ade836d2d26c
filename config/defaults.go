package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/orchat",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Backend: BackendConfig{
			BaseURL:      "http://localhost:8080",
			DefaultModel: "meta-llama/llama-3.2-90b-instruct",
		},
		WebSearch: false,
	}
}

func GenerateSystemConfigTemplate() string {
	return `# ORCHAT System Configuration
# Location: ~/.config/orchat/settings.toml
# This file uses TOML format: https://toml.io

# Directory where conversations and user config are stored
data_directory = "~/.local/share/orchat"
`
}

func GenerateUserConfigTemplate() string {
	return `# ORCHAT User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[backend]
# Chat backend URL
base_url = "http://localhost:8080"

# Default model to use when starting a new conversation
default_model = "meta-llama/llama-3.2-90b-instruct"

# Reasoning effort requested for models that support it
# One of: "", "low", "medium", "high"
reasoning_effort = ""

# Ask the backend to run web search for new turns
web_search = false
`
}
