package model

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// PatientFeatures holds the eight measurements the scoring model was trained
// on. FeatureOrder fixes the vector layout shared with the offline trainer.
type PatientFeatures struct {
	Pregnancies      int
	Glucose          float64
	BloodPressure    float64
	SkinThickness    float64
	Insulin          float64
	BMI              float64
	DiabetesPedigree float64
	Age              int
}

const FeatureCount = 8

// Vector returns the features in the order the scaler and cluster centers
// were fit with.
func (f PatientFeatures) Vector() [FeatureCount]float64 {
	return [FeatureCount]float64{
		float64(f.Pregnancies),
		f.Glucose,
		f.BloodPressure,
		f.SkinThickness,
		f.Insulin,
		f.BMI,
		f.DiabetesPedigree,
		float64(f.Age),
	}
}

type RiskAssessment struct {
	RiskLabel      string
	Recommendation string
}
