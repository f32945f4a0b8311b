package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/picogrid/swarm-nav/pkg/simulation"
)

// SkipPromptsEnv disables interactive prompts when set to true
const SkipPromptsEnv = "SWARM_SKIP_PROMPTS"

// PromptForParameters prompts the user for scenario parameters. With
// SWARM_SKIP_PROMPTS=true it resolves every parameter from SWARM_<NAME>
// variables and defaults instead.
func PromptForParameters(params []simulation.Parameter) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	for _, param := range params {
		value, err := promptForParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		if value != nil {
			result[param.Name] = value
		}
	}

	return result, nil
}

// SkipPrompts reports whether prompts are disabled
func SkipPrompts() bool {
	skip, _ := strconv.ParseBool(os.Getenv(SkipPromptsEnv))
	return skip
}

// EnvKey is the variable that overrides a parameter
func EnvKey(name string) string {
	return "SWARM_" + strings.ToUpper(name)
}

func promptForParameter(param simulation.Parameter) (interface{}, error) {
	envValue := os.Getenv(EnvKey(param.Name))

	if SkipPrompts() {
		if envValue != "" {
			return param.Parse(envValue)
		}
		if param.Default != nil {
			return param.Parse(param.DefaultString())
		}
		if param.Required {
			return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
		}
		return nil, nil
	}

	// an environment value becomes the prompt default
	if envValue != "" {
		if _, err := param.Parse(envValue); err == nil {
			param.Default = envValue
		}
	}

	switch param.Type {
	case simulation.TypeBoolean:
		return promptBoolean(param)
	case simulation.TypeString:
		if len(param.Options) > 0 {
			return promptSelect(param)
		}
	case simulation.TypeList:
		if len(param.Options) > 0 {
			return promptMultiSelect(param)
		}
	}
	return promptInput(param)
}

// promptInput asks for free text and validates it with the parameter's
// own parser so the prompt repeats until the value is acceptable
func promptInput(param simulation.Parameter) (interface{}, error) {
	message := param.Description
	if param.Type == simulation.TypeDuration {
		message += " (e.g., 5m, 1h30m, 30s)"
	}

	prompt := &survey.Input{
		Message: message,
		Default: param.DefaultString(),
	}

	validators := []survey.Validator{func(val interface{}) error {
		str, _ := val.(string)
		if str == "" && !param.Required {
			return nil
		}
		_, err := param.Parse(str)
		return err
	}}
	if param.Required {
		validators = append([]survey.Validator{survey.Required}, validators...)
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.ComposeValidators(validators...))); err != nil {
		return nil, err
	}
	if result == "" {
		return nil, nil
	}
	return param.Parse(result)
}

func promptSelect(param simulation.Parameter) (interface{}, error) {
	prompt := &survey.Select{
		Message: param.Description,
		Options: param.Options,
	}
	if def := param.DefaultString(); def != "" {
		prompt.Default = def
	}

	var result string
	if err := survey.AskOne(prompt, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func promptMultiSelect(param simulation.Parameter) (interface{}, error) {
	prompt := &survey.MultiSelect{
		Message: param.Description,
		Options: param.Options,
	}
	if def := param.DefaultString(); def != "" {
		prompt.Default = strings.Split(def, ",")
	}

	var result []string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.MinItems(1))); err != nil {
		return nil, err
	}
	return result, nil
}

func promptBoolean(param simulation.Parameter) (interface{}, error) {
	defaultBool := false
	if param.Default != nil {
		switch v := param.Default.(type) {
		case bool:
			defaultBool = v
		case string:
			defaultBool, _ = strconv.ParseBool(v)
		}
	}

	prompt := &survey.Confirm{
		Message: param.Description,
		Default: defaultBool,
	}

	var result bool
	if err := survey.AskOne(prompt, &result); err != nil {
		return nil, err
	}
	return result, nil
}
