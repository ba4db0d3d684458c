package model

import "encoding/json"

// DashboardStats are the headline numbers of the admin dashboard
type DashboardStats struct {
	TotalUsers             int     `json:"totalUsers"`
	TotalTests             int     `json:"totalTests"`
	TotalQuestions         int     `json:"totalQuestions"`
	AverageScore           float64 `json:"averageScore"`
	CompletionRate         float64 `json:"completionRate"`
	ActiveUsers            int     `json:"activeUsers"`
	TotalSessions          int     `json:"totalSessions"`
	AverageSessionDuration float64 `json:"averageSessionDuration"`
}

// TrendPoint is one day of test activity
type TrendPoint struct {
	Date           string  `json:"date"`
	TestsTaken     int     `json:"testsTaken"`
	AverageScore   float64 `json:"averageScore"`
	CompletedTests int     `json:"completedTests"`
}

// CompetencyScore aggregates results for one competency
type CompetencyScore struct {
	Competency   string  `json:"competency"`
	AverageScore float64 `json:"averageScore"`
	TotalTests   int     `json:"totalTests"`
	Improvement  float64 `json:"improvement"`
}

// DashboardCompetencies groups competency analytics
type DashboardCompetencies struct {
	CompetencyScores    []CompetencyScore `json:"competencyScores"`
	AreasForImprovement []struct {
		Competency   string  `json:"competency"`
		AverageScore float64 `json:"averageScore"`
		Priority     string  `json:"priority"`
	} `json:"areasForImprovement"`
}

// DashboardDemographics groups population breakdowns
type DashboardDemographics struct {
	AgeGroups []struct {
		AgeGroup     string  `json:"ageGroup"`
		Count        int     `json:"count"`
		Percentage   float64 `json:"percentage"`
		AverageScore float64 `json:"averageScore"`
	} `json:"ageGroups"`
	GenderDistribution []struct {
		Gender       string  `json:"gender"`
		Count        int     `json:"count"`
		Percentage   float64 `json:"percentage"`
		AverageScore float64 `json:"averageScore"`
	} `json:"genderDistribution"`
}

// DashboardPerformance groups score and timing analytics
type DashboardPerformance struct {
	ScoreDistribution []struct {
		Range      string  `json:"range"`
		Count      int     `json:"count"`
		Percentage float64 `json:"percentage"`
	} `json:"scoreDistribution"`
	TimeAnalysis struct {
		AverageTimePerQuestion float64 `json:"averageTimePerQuestion"`
		AverageTimePerTest     float64 `json:"averageTimePerTest"`
	} `json:"timeAnalysis"`
	AccuracyMetrics struct {
		OverallAccuracy float64 `json:"overallAccuracy"`
	} `json:"accuracyMetrics"`
}

// Performer is a ranked user
type Performer struct {
	UserID       string  `json:"userId"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	TotalTests   int     `json:"totalTests"`
	AverageScore float64 `json:"averageScore"`
	HighestScore float64 `json:"highestScore"`
	Rank         int     `json:"rank"`
}

// TopPerformers lists the best users
type TopPerformers struct {
	TopUsers []Performer `json:"topUsers"`
}

// DashboardComplete bundles every dashboard section
type DashboardComplete struct {
	Stats         DashboardStats        `json:"stats"`
	Trends        []TrendPoint          `json:"trends"`
	Competencies  DashboardCompetencies `json:"competencies"`
	Demographics  DashboardDemographics `json:"demographics"`
	Performance   DashboardPerformance  `json:"performance"`
	TopPerformers TopPerformers         `json:"topPerformers"`
}

// UnmarshalJSON accepts sections either bare or wrapped in their own
// {success, data} envelope.
func (d *DashboardComplete) UnmarshalJSON(b []byte) error {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(b, &sections); err != nil {
		return err
	}

	targets := map[string]interface{}{
		"stats":         &d.Stats,
		"trends":        &d.Trends,
		"competencies":  &d.Competencies,
		"demographics":  &d.Demographics,
		"performance":   &d.Performance,
		"topPerformers": &d.TopPerformers,
	}
	for name, target := range targets {
		raw, ok := sections[name]
		if !ok || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(unwrapSection(raw), target); err != nil {
			return err
		}
	}
	return nil
}

func unwrapSection(raw json.RawMessage) json.RawMessage {
	var wrapped struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Success != nil && len(wrapped.Data) > 0 {
		return wrapped.Data
	}
	return raw
}
