package planselect

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/investly/investly/internal/cli/client"
)

// FormatCents renders an amount in cents as dollars
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// Label is the one-line description shown for a plan
func Label(p client.Plan) string {
	return fmt.Sprintf("%s  %.2f%% over %d days  (%s - %s)",
		p.Name, p.ROIPercent, p.DurationDays, FormatCents(p.MinAmount), FormatCents(p.MaxAmount))
}

// Resolve finds a plan by ID or case-insensitive name; with an empty query it
// prompts when there are several plans and picks the only one otherwise.
func Resolve(plans []client.Plan, query string) (*client.Plan, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("no investment plans are available")
	}

	if query != "" {
		for i := range plans {
			if plans[i].ID == query || strings.EqualFold(plans[i].Name, query) {
				return &plans[i], nil
			}
		}
		return nil, fmt.Errorf("plan '%s' not found", query)
	}

	if len(plans) == 1 {
		return &plans[0], nil
	}

	return PromptPlanSelection(plans)
}

// PromptPlanSelection shows an interactive prompt for the user to select a plan
func PromptPlanSelection(plans []client.Plan) (*client.Plan, error) {
	type planOption struct {
		Label string
		Plan  *client.Plan
	}

	options := make([]planOption, len(plans))
	for i := range plans {
		options[i] = planOption{
			Label: Label(plans[i]),
			Plan:  &plans[i],
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a plan",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("plan selection cancelled: %w", err)
	}

	return options[index].Plan, nil
}
