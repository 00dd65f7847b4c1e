package features

import (
	"github.com/clinical-risk-scorer/internal/domain"
)

// Record is the named-field form of one domain's inputs.
type Record interface {
	// ToVector returns the values in classifier training order.
	ToVector() []float64
}

// HeartInputs holds the cardiac screening fields.
type HeartInputs struct {
	Age      int     `mapstructure:"age"`
	Sex      int     `mapstructure:"sex"`
	CP       int     `mapstructure:"cp"`
	Trestbps int     `mapstructure:"trestbps"`
	Chol     int     `mapstructure:"chol"`
	FBS      int     `mapstructure:"fbs"`
	Restecg  int     `mapstructure:"restecg"`
	Thalach  int     `mapstructure:"thalach"`
	Exang    int     `mapstructure:"exang"`
	Oldpeak  float64 `mapstructure:"oldpeak"`
	Slope    int     `mapstructure:"slope"`
	CA       int     `mapstructure:"ca"`
	Thal     int     `mapstructure:"thal"`
}

func (h *HeartInputs) ToVector() []float64 {
	return []float64{
		float64(h.Age),
		float64(h.Sex),
		float64(h.CP),
		float64(h.Trestbps),
		float64(h.Chol),
		float64(h.FBS),
		float64(h.Restecg),
		float64(h.Thalach),
		float64(h.Exang),
		h.Oldpeak,
		float64(h.Slope),
		float64(h.CA),
		float64(h.Thal),
	}
}

// DiabetesInputs holds the metabolic screening fields.
type DiabetesInputs struct {
	Pregnancies              int     `mapstructure:"pregnancies"`
	Glucose                  int     `mapstructure:"glucose"`
	BloodPressure            int     `mapstructure:"blood_pressure"`
	SkinThickness            int     `mapstructure:"skin_thickness"`
	Insulin                  int     `mapstructure:"insulin"`
	BMI                      float64 `mapstructure:"bmi"`
	DiabetesPedigreeFunction float64 `mapstructure:"diabetes_pedigree_function"`
	Age                      int     `mapstructure:"age"`
}

func (d *DiabetesInputs) ToVector() []float64 {
	return []float64{
		float64(d.Pregnancies),
		float64(d.Glucose),
		float64(d.BloodPressure),
		float64(d.SkinThickness),
		float64(d.Insulin),
		d.BMI,
		d.DiabetesPedigreeFunction,
		float64(d.Age),
	}
}

// ParkinsonsInputs holds the voice recording measurements.
type ParkinsonsInputs struct {
	MeanFreq float64 `mapstructure:"meanfreq"`
	SD       float64 `mapstructure:"sd"`
	Median   float64 `mapstructure:"median"`
	Q25      float64 `mapstructure:"q25"`
	Q75      float64 `mapstructure:"q75"`
	IQR      float64 `mapstructure:"iqr"`
	Skew     float64 `mapstructure:"skew"`
	Kurt     float64 `mapstructure:"kurt"`
	SpEnt    float64 `mapstructure:"sp_ent"`
	SFM      float64 `mapstructure:"sfm"`
	Mode     float64 `mapstructure:"mode"`
	Centroid float64 `mapstructure:"centroid"`
	PeakF    float64 `mapstructure:"peakf"`
	MeanFun  float64 `mapstructure:"meanfun"`
	MinFun   float64 `mapstructure:"minfun"`
	MaxFun   float64 `mapstructure:"maxfun"`
	MeanDom  float64 `mapstructure:"meandom"`
	MinDom   float64 `mapstructure:"mindom"`
	MaxDom   float64 `mapstructure:"maxdom"`
	DFRange  float64 `mapstructure:"dfrange"`
	ModIndx  float64 `mapstructure:"modindx"`
	PPE      float64 `mapstructure:"ppe"`
}

func (p *ParkinsonsInputs) ToVector() []float64 {
	return []float64{
		p.MeanFreq, p.SD, p.Median, p.Q25, p.Q75, p.IQR,
		p.Skew, p.Kurt, p.SpEnt, p.SFM, p.Mode, p.Centroid,
		p.PeakF, p.MeanFun, p.MinFun, p.MaxFun, p.MeanDom, p.MinDom,
		p.MaxDom, p.DFRange, p.ModIndx, p.PPE,
	}
}

// LungCancerInputs holds the pulmonary risk questionnaire. Every field but
// Age is a 0/1 flag.
type LungCancerInputs struct {
	Gender               int `mapstructure:"gender"`
	Age                  int `mapstructure:"age"`
	Smoking              int `mapstructure:"smoking"`
	YellowFingers        int `mapstructure:"yellow_fingers"`
	Anxiety              int `mapstructure:"anxiety"`
	PeerPressure         int `mapstructure:"peer_pressure"`
	ChronicDisease       int `mapstructure:"chronic_disease"`
	Fatigue              int `mapstructure:"fatigue"`
	Allergy              int `mapstructure:"allergy"`
	Wheezing             int `mapstructure:"wheezing"`
	AlcoholConsuming     int `mapstructure:"alcohol_consuming"`
	Coughing             int `mapstructure:"coughing"`
	ShortnessOfBreath    int `mapstructure:"shortness_of_breath"`
	SwallowingDifficulty int `mapstructure:"swallowing_difficulty"`
	ChestPain            int `mapstructure:"chest_pain"`
}

func (l *LungCancerInputs) ToVector() []float64 {
	return []float64{
		float64(l.Gender),
		float64(l.Age),
		float64(l.Smoking),
		float64(l.YellowFingers),
		float64(l.Anxiety),
		float64(l.PeerPressure),
		float64(l.ChronicDisease),
		float64(l.Fatigue),
		float64(l.Allergy),
		float64(l.Wheezing),
		float64(l.AlcoholConsuming),
		float64(l.Coughing),
		float64(l.ShortnessOfBreath),
		float64(l.SwallowingDifficulty),
		float64(l.ChestPain),
	}
}

// ThyroidInputs holds the endocrine panel. Gender is 1 for male.
type ThyroidInputs struct {
	Age         int     `mapstructure:"age"`
	Gender      int     `mapstructure:"gender"`
	OnThyroxine int     `mapstructure:"on_thyroxine"`
	T3Measured  int     `mapstructure:"t3_measured"`
	T3          float64 `mapstructure:"t3"`
	TT4         float64 `mapstructure:"tt4"`
	TSH         float64 `mapstructure:"tsh"`
}

func (t *ThyroidInputs) ToVector() []float64 {
	return []float64{
		float64(t.Age),
		float64(t.Gender),
		float64(t.OnThyroxine),
		float64(t.T3Measured),
		t.T3,
		t.TT4,
		t.TSH,
	}
}

func newRecord(d domain.Domain) (Record, bool) {
	switch d {
	case domain.Heart:
		return &HeartInputs{}, true
	case domain.Diabetes:
		return &DiabetesInputs{}, true
	case domain.Parkinsons:
		return &ParkinsonsInputs{}, true
	case domain.LungCancer:
		return &LungCancerInputs{}, true
	case domain.Thyroid:
		return &ThyroidInputs{}, true
	default:
		return nil, false
	}
}
