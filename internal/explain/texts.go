package explain

import (
	"github.com/clinical-risk-scorer/internal/domain"
)

// Disclaimer is attached to every recommendation.
const Disclaimer = "This assessment tool is for educational purposes only and is not a substitute for professional medical advice."

type body struct {
	headline string
	summary  string
	lead     string
	actions  []string
}

type bodyKey struct {
	domain  domain.Domain
	verdict domain.Verdict
}

var bodies = map[bodyKey]body{
	{domain.Heart, domain.VerdictPositive}: {
		headline: "Heart Disease Detected",
		summary:  "Based on the provided parameters, the model predicts that the patient may have heart disease.",
		lead:     "Further cardiac evaluation is recommended, including:",
		actions: []string{
			"Echocardiogram",
			"Stress test",
			"Coronary angiography (if necessary)",
			"Consultation with a cardiologist",
		},
	},
	{domain.Heart, domain.VerdictNegative}: {
		headline: "No Heart Disease Detected",
		summary:  "Based on the provided parameters, the model predicts that the patient likely does not have heart disease.",
		lead:     "Continue heart-healthy lifestyle habits:",
		actions: []string{
			"Regular exercise",
			"Balanced diet",
			"Avoid smoking",
			"Limit alcohol consumption",
			"Manage stress",
		},
	},
	{domain.Diabetes, domain.VerdictPositive}: {
		headline: "Diabetes Detected",
		summary:  "Based on the provided parameters, the model predicts that the patient may have diabetes.",
		lead:     "A comprehensive clinical evaluation is recommended, including:",
		actions: []string{
			"HbA1c test",
			"Fasting blood glucose test",
			"Oral glucose tolerance test",
		},
	},
	{domain.Diabetes, domain.VerdictNegative}: {
		headline: "No Diabetes Detected",
		summary:  "Based on the provided parameters, the model predicts that the patient likely does not have diabetes.",
		lead:     "Maintain healthy lifestyle habits and continue regular check-ups.",
	},
	{domain.Parkinsons, domain.VerdictPositive}: {
		headline: "Parkinson's Disease Detected",
		summary:  "Based on the provided parameters, the model predicts that the patient may have Parkinson's disease.",
		lead:     "A comprehensive clinical evaluation is recommended, including:",
		actions: []string{
			"Neurological examination",
			"MRI or CT scan",
			"Consultation with a movement disorder specialist",
		},
	},
	{domain.Parkinsons, domain.VerdictNegative}: {
		headline: "No Parkinson's Disease Detected",
		summary:  "Based on the provided parameters, the model predicts that the patient likely does not have Parkinson's disease.",
		lead:     "Maintain regular health check-ups and monitor for any changes in movement or speech.",
	},
	{domain.LungCancer, domain.VerdictPositive}: {
		headline: "High Risk of Lung Cancer",
		summary:  "Based on the provided parameters, the model predicts that the patient may have a high risk of lung cancer.",
		lead:     "A comprehensive evaluation is recommended, including:",
		actions: []string{
			"Chest X-ray",
			"CT scan",
			"Consultation with a pulmonologist",
		},
	},
	{domain.LungCancer, domain.VerdictNegative}: {
		headline: "Low Risk of Lung Cancer",
		summary:  "Based on the provided parameters, the model predicts that the patient likely has a low risk of lung cancer.",
		lead:     "Continue regular health check-ups and maintain a healthy lifestyle.",
	},
	{domain.Thyroid, domain.VerdictHigh}: {
		headline: "High Risk: Strong indicators of thyroid dysfunction",
		summary:  "Based on the analysis, there is a high risk of thyroid dysfunction.",
		lead:     "We strongly recommend:",
		actions: []string{
			"Urgent consultation with an endocrinologist for comprehensive evaluation",
			"Additional testing including: Thyroid antibody tests (TPO, TgAb), Thyroid ultrasound, Complete metabolic panel",
			"Close monitoring of symptoms and thyroid function",
			"Medication evaluation if currently on thyroid medication",
		},
	},
	{domain.Thyroid, domain.VerdictModerate}: {
		headline: "Moderate Risk: Some indicators of possible thyroid dysfunction",
		summary:  "Based on the analysis, there is a moderate risk of thyroid dysfunction.",
		lead:     "We recommend:",
		actions: []string{
			"Follow-up with a primary care physician within the next 1-2 weeks",
			"Additional thyroid function testing to confirm results",
			"Monitoring of symptoms and reporting any changes to your healthcare provider",
			"Review of current medications that may affect thyroid function",
		},
	},
	{domain.Thyroid, domain.VerdictLow}: {
		headline: "Low Risk: Indicators suggest normal thyroid function",
		summary:  "Based on the analysis, there is a low risk of thyroid dysfunction.",
		lead:     "We recommend:",
		actions: []string{
			"Routine health maintenance with your primary care provider",
			"Regular thyroid screening as part of annual check-ups, especially if you have family history",
			"Healthy lifestyle choices including balanced nutrition and regular exercise",
			"Monitoring for new symptoms that could indicate thyroid dysfunction",
		},
	},
}

// Topic is one educational note.
type Topic struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Sections []string `json:"sections,omitempty"`
}

var thyroidEducation = []Topic{
	{
		Title: "Thyroid Basics",
		Summary: "The thyroid is a butterfly-shaped gland in the neck that produces hormones regulating metabolism, " +
			"growth, and energy production. Thyroid disorders affect about 20 million Americans, with women being " +
			"5-8 times more likely to develop them.",
		Sections: []string{
			"TSH (Thyroid Stimulating Hormone): Produced by the pituitary gland to control thyroid hormone production",
			"T4 (Thyroxine): The main hormone produced by the thyroid",
			"T3 (Triiodothyronine): The active form of thyroid hormone converted from T4",
		},
	},
	{
		Title:   "Hypothyroidism",
		Summary: "Hypothyroidism occurs when the thyroid doesn't produce enough thyroid hormones.",
		Sections: []string{
			"Common symptoms: Fatigue and weakness; Weight gain; Cold intolerance; Dry skin and hair; Depression; Constipation; Memory problems",
			"Treatment typically involves: Daily thyroid hormone replacement medication (levothyroxine); " +
				"Regular monitoring of thyroid hormone levels; Lifestyle adjustments to manage symptoms",
		},
	},
	{
		Title:   "Hyperthyroidism",
		Summary: "Hyperthyroidism occurs when the thyroid produces too much thyroid hormone.",
		Sections: []string{
			"Common symptoms: Weight loss despite increased appetite; Rapid heartbeat; Nervousness and irritability; " +
				"Heat intolerance and sweating; Tremors; Sleep difficulties; Eye problems (in Graves' disease)",
			"Treatment options include: Anti-thyroid medications; Radioactive iodine therapy; Surgery (thyroidectomy); " +
				"Beta-blockers to manage symptoms",
		},
	},
}

var thyroidReferences = []string{
	"American Thyroid Association Guidelines, 2023",
	"National Institute of Diabetes and Digestive and Kidney Diseases, Thyroid Information",
	"Journal of Clinical Endocrinology & Metabolism, Thyroid Function Assessment",
}

// voiceProfileCategories label the first six Parkinson's features on the
// voice profile chart.
var voiceProfileCategories = []string{"Fundamental Frequency", "Jitter", "Shimmer", "NHR", "HNR", "DFA"}
