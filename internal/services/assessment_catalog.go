package services

import (
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// AnswerOption is one selectable answer. Value contributes to scoring; the
// top option per question is worth 4.
type AnswerOption struct {
	Text    string `json:"text"`
	Value   int    `json:"value"`
	Correct bool   `json:"correct"`
}

// Question is one fixed assessment question. The set ships with the binary
// so assessments run without connectivity.
type Question struct {
	ID         int                 `json:"id"`
	Category   types.SkillCategory `json:"category"`
	Text       string              `json:"question"`
	Difficulty int                 `json:"difficulty"`
	Options    []AnswerOption      `json:"options"`
}

// CatalogCourse is the locally cached course metadata used for learning
// path generation.
type CatalogCourse struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Category         types.SkillCategory   `json:"category"`
	Difficulty       int                   `json:"difficulty"`
	EstimatedMinutes int                   `json:"estimated_minutes"`
	Description      string                `json:"description"`
	Priority         int                   `json:"priority"`
	RequiredLevel    types.CompetencyLevel `json:"required_level"`
}

func assessmentQuestions() []Question {
	opts := func(top, mid, low string) []AnswerOption {
		return []AnswerOption{
			{Text: top, Value: 4, Correct: true},
			{Text: mid, Value: 2},
			{Text: low, Value: 0},
		}
	}
	return []Question{
		{
			ID: 1, Category: types.CategoryBasicDigital, Difficulty: 1,
			Text: "How comfortable are you with using a smartphone for calls and messaging?",
			Options: opts(
				"Very comfortable - I use it daily",
				"Somewhat comfortable - I know the basics",
				"Not comfortable - I rarely use these features"),
		},
		{
			ID: 2, Category: types.CategoryBasicDigital, Difficulty: 1,
			Text: "Can you use the internet to search for information?",
			Options: opts(
				"Yes, I search online daily",
				"Sometimes, but I need help",
				"No, I don't know how to search"),
		},
		{
			ID: 3, Category: types.CategoryBasicDigital, Difficulty: 1,
			Text: "Do you know how to create and use email?",
			Options: opts(
				"Yes, I have email and use it regularly",
				"I have email but don't use it much",
				"I don't have an email account"),
		},
		{
			ID: 4, Category: types.CategoryFinancialManagement, Difficulty: 2,
			Text: "How well do you use M-Pesa or other mobile money services?",
			Options: opts(
				"Very well - I use it for most transactions",
				"Basic use - sending and receiving money",
				"I don't use mobile money services"),
		},
		{
			ID: 5, Category: types.CategoryFinancialManagement, Difficulty: 2,
			Text: "Do you keep track of your business or personal finances?",
			Options: opts(
				"Yes, I have a system for tracking money",
				"I try to keep track but it's not organized",
				"I don't keep financial records"),
		},
		{
			ID: 6, Category: types.CategoryBusinessAutomation, Difficulty: 2,
			Text: "Do you use any apps to help with your business or work?",
			Options: opts(
				"Yes, I use several business apps",
				"I use one or two simple apps",
				"I don't use any business apps"),
		},
		{
			ID: 7, Category: types.CategoryBusinessAutomation, Difficulty: 2,
			Text: "Can you keep customer information organized?",
			Options: opts(
				"Yes, I have a system for customer data",
				"I keep basic customer information",
				"I don't keep customer records"),
		},
		{
			ID: 8, Category: types.CategoryECommerce, Difficulty: 3,
			Text: "Have you ever sold anything online?",
			Options: opts(
				"Yes, I sell online regularly",
				"I've tried selling online a few times",
				"I've never sold anything online"),
		},
		{
			ID: 9, Category: types.CategoryDigitalMarketing, Difficulty: 3,
			Text: "Do you use social media to promote your business or skills?",
			Options: opts(
				"Yes, I actively use social media for business",
				"I use social media but not for business",
				"I don't use social media"),
		},
		{
			ID: 10, Category: types.CategoryCommunication, Difficulty: 1,
			Text: "How comfortable are you with basic English for business?",
			Options: opts(
				"Very comfortable - I can communicate well",
				"Somewhat comfortable - I know some English",
				"Not comfortable - I prefer local languages"),
		},
	}
}

func courseCatalog() []CatalogCourse {
	return []CatalogCourse{
		{
			ID: "mobile-basics", Title: "Mobile Phone Basics",
			Category: types.CategoryBasicDigital, Difficulty: 1, EstimatedMinutes: 30,
			Description: "Learn essential smartphone skills",
			Priority:    1, RequiredLevel: types.LevelBeginner,
		},
		{
			ID: "internet-basics", Title: "Internet & Search Skills",
			Category: types.CategoryBasicDigital, Difficulty: 1, EstimatedMinutes: 45,
			Description: "Master online search and browsing",
			Priority:    2, RequiredLevel: types.LevelBeginner,
		},
		{
			ID: "email-communication", Title: "Email Communication",
			Category: types.CategoryCommunication, Difficulty: 1, EstimatedMinutes: 40,
			Description: "Professional email skills",
			Priority:    3, RequiredLevel: types.LevelBeginner,
		},
		{
			ID: "mpesa-mastery", Title: "M-Pesa & Mobile Money",
			Category: types.CategoryFinancialManagement, Difficulty: 2, EstimatedMinutes: 50,
			Description: "Master mobile money transactions",
			Priority:    4, RequiredLevel: types.LevelIntermediate,
		},
		{
			ID: "financial-tracking", Title: "Financial Record Keeping",
			Category: types.CategoryFinancialManagement, Difficulty: 2, EstimatedMinutes: 60,
			Description: "Track business finances effectively",
			Priority:    5, RequiredLevel: types.LevelIntermediate,
		},
		{
			ID: "business-apps", Title: "Business Apps & Tools",
			Category: types.CategoryBusinessAutomation, Difficulty: 2, EstimatedMinutes: 55,
			Description: "Use apps to automate your business",
			Priority:    6, RequiredLevel: types.LevelIntermediate,
		},
		{
			ID: "customer-management", Title: "Customer Data Management",
			Category: types.CategoryBusinessAutomation, Difficulty: 2, EstimatedMinutes: 50,
			Description: "Organize customer information",
			Priority:    7, RequiredLevel: types.LevelIntermediate,
		},
		{
			ID: "online-selling", Title: "Online Selling Basics",
			Category: types.CategoryECommerce, Difficulty: 3, EstimatedMinutes: 70,
			Description: "Start selling products online",
			Priority:    8, RequiredLevel: types.LevelAdvanced,
		},
		{
			ID: "social-media-marketing", Title: "Social Media for Business",
			Category: types.CategoryDigitalMarketing, Difficulty: 3, EstimatedMinutes: 65,
			Description: "Promote your business on social media",
			Priority:    9, RequiredLevel: types.LevelAdvanced,
		},
		{
			ID: "advanced-ecommerce", Title: "Advanced E-Commerce",
			Category: types.CategoryECommerce, Difficulty: 4, EstimatedMinutes: 90,
			Description: "Scale your online business",
			Priority:    10, RequiredLevel: types.LevelExpert,
		},
	}
}

func categoryDisplayName(category types.SkillCategory) string {
	switch category {
	case types.CategoryBasicDigital:
		return "Basic Digital Skills"
	case types.CategoryBusinessAutomation:
		return "Business Automation"
	case types.CategoryECommerce:
		return "E-Commerce"
	case types.CategoryDigitalMarketing:
		return "Digital Marketing"
	case types.CategoryFinancialManagement:
		return "Financial Management"
	case types.CategoryCommunication:
		return "Communication"
	default:
		return string(category)
	}
}
