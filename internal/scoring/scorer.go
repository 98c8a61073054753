package scoring

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/model"
)

// Artifacts are the trained scaler and cluster centers exported by the
// offline trainer. They are consumed as-is; the training procedure is not
// this service's concern.
type Artifacts struct {
	Scaler struct {
		Mean  []float64 `json:"mean"`
		Scale []float64 `json:"scale"`
	} `json:"scaler"`
	KMeans struct {
		Centers [][]float64 `json:"centers"`
	} `json:"kmeans"`
}

func LoadArtifacts(path string) (*Artifacts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifacts: %w", err)
	}
	var artifacts Artifacts
	if err := json.Unmarshal(data, &artifacts); err != nil {
		return nil, fmt.Errorf("parse artifacts: %w", err)
	}
	if err := artifacts.validate(); err != nil {
		return nil, err
	}
	return &artifacts, nil
}

func (a *Artifacts) validate() error {
	if len(a.Scaler.Mean) != model.FeatureCount || len(a.Scaler.Scale) != model.FeatureCount {
		return fmt.Errorf("scaler dimension mismatch: mean=%d scale=%d want=%d", len(a.Scaler.Mean), len(a.Scaler.Scale), model.FeatureCount)
	}
	for i, scale := range a.Scaler.Scale {
		if scale == 0 {
			return fmt.Errorf("scaler scale[%d] is zero", i)
		}
	}
	if len(a.KMeans.Centers) == 0 {
		return fmt.Errorf("no cluster centers")
	}
	for i, center := range a.KMeans.Centers {
		if len(center) != model.FeatureCount {
			return fmt.Errorf("center %d dimension mismatch: got=%d want=%d", i, len(center), model.FeatureCount)
		}
	}
	return nil
}

var riskLabels = map[int]string{
	0: "Low Risk",
	1: "Medium Risk",
	2: "High Risk",
}

const UnknownRisk = "Unknown Risk"

// Scorer assigns a patient feature vector to its nearest cluster center in
// standardized space and maps the cluster index to a risk label. Pure and
// deterministic for a given set of artifacts.
type Scorer struct {
	mean    []float64
	scale   []float64
	centers [][]float64
}

func NewScorer(artifacts *Artifacts) *Scorer {
	return &Scorer{
		mean:    artifacts.Scaler.Mean,
		scale:   artifacts.Scaler.Scale,
		centers: artifacts.KMeans.Centers,
	}
}

func (s *Scorer) Score(features model.PatientFeatures) string {
	vec := features.Vector()

	var scaled [model.FeatureCount]float64
	for i := range vec {
		scaled[i] = (vec[i] - s.mean[i]) / s.scale[i]
	}

	nearest := 0
	best := squaredDistance(scaled, s.centers[0])
	for i := 1; i < len(s.centers); i++ {
		if dist := squaredDistance(scaled, s.centers[i]); dist < best {
			best = dist
			nearest = i
		}
	}

	label, ok := riskLabels[nearest]
	if !ok {
		return UnknownRisk
	}
	return label
}

func squaredDistance(point [model.FeatureCount]float64, center []float64) float64 {
	var sum float64
	for i := range point {
		diff := point[i] - center[i]
		sum += diff * diff
	}
	return sum
}
