package groundtruth

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// DefaultQuestions returns the five Acme evaluation questions.
func DefaultQuestions() []models.Question {
	return []models.Question{
		{ID: "Q1", Text: "Describe the specific policies and controls available to prevent data loss and control information flow from the Acme application on unmanaged, employee-owned mobile devices. Detail how data can be contained within the application and what actions can be taken if a device is compromised or lost."},
		{ID: "Q2", Text: "What is Acme's guiding architectural philosophy for security? Describe the core principles of this architecture, such as how it redefines the security perimeter and its approach to access control."},
		{ID: "Q3", Text: "Our security operations team requires deep integration for monitoring user and administrative activity. Describe the platform's native capabilities for exporting detailed audit logs and the specific mechanisms or connectors provided for integration with enterprise Security Information and Event Management (SIEM) platforms."},
		{ID: "Q4", Text: "For compliance purposes, we must enforce policies that actively prevent communication between specific user groups. What platform feature allows an administrator to create such a policy, and what is the user experience for individuals in groups where this communication control is enforced?"},
		{ID: "Q5", Text: "Beyond the governance of customer data used by AI features, what is Acme's framework for the responsible development of the AI models themselves? Specifically, what is your policy regarding the sourcing of training data for global models, and what governance processes are in place to validate models for fairness and bias before deployment?"},
	}
}

// LoadQuestions reads an ordered YAML list of {id, text} questions.
// An empty path returns DefaultQuestions.
func LoadQuestions(path string) ([]models.Question, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultQuestions(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}

	var questions []models.Question
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&questions); err != nil {
		return nil, fmt.Errorf("parse questions %s: %w", path, err)
	}
	if err := validateQuestions(questions); err != nil {
		return nil, fmt.Errorf("questions %s: %w", path, err)
	}
	return questions, nil
}

func validateQuestions(questions []models.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("no questions defined")
	}
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if strings.TrimSpace(q.ID) == "" {
			return fmt.Errorf("question %d has no id", i+1)
		}
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %s has no text", q.ID)
		}
		if seen[q.ID] {
			return fmt.Errorf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = true
	}
	return nil
}
