package model

// LayerStats describes the parameter count of one layer.
type LayerStats struct {
	Layer   int    `json:"layer"`
	Input   uint64 `json:"input_dim"`
	Output  uint64 `json:"output_dim"`
	Weights uint64 `json:"weights"`
	Biases  uint64 `json:"biases"`
	Total   uint64 `json:"total"`
}

// Stats summarizes a model's size.
type Stats struct {
	TotalLayers      int          `json:"total_layers"`
	TotalParameters  uint64       `json:"total_parameters"`
	TotalWeights     uint64       `json:"total_weights"`
	TotalBiases      uint64       `json:"total_biases"`
	AverageLayerSize float64      `json:"average_layer_size"`
	LargestLayer     uint64       `json:"largest_layer_size"`
	SmallestLayer    uint64       `json:"smallest_layer_size"`
	Distribution     []LayerStats `json:"parameter_distribution"`
}

// ComputeStats derives parameter counts from the layer dimensions, and
// weight/bias totals from the arrays actually present.
func ComputeStats(m QuantizedModel) Stats {
	s := Stats{
		TotalLayers:  len(m.LayerDimensions),
		Distribution: make([]LayerStats, 0, len(m.LayerDimensions)),
	}
	for i, d := range m.LayerDimensions {
		ls := LayerStats{
			Layer:   i,
			Input:   d.In,
			Output:  d.Out,
			Weights: d.In * d.Out,
			Biases:  d.Out,
		}
		ls.Total = ls.Weights + ls.Biases
		s.Distribution = append(s.Distribution, ls)

		s.TotalParameters += ls.Total
		if i == 0 || ls.Total > s.LargestLayer {
			s.LargestLayer = ls.Total
		}
		if i == 0 || ls.Total < s.SmallestLayer {
			s.SmallestLayer = ls.Total
		}
	}
	if s.TotalLayers > 0 {
		s.AverageLayerSize = float64(s.TotalParameters) / float64(s.TotalLayers)
	}
	for _, w := range m.WeightsMagnitude {
		s.TotalWeights += uint64(len(w))
	}
	for _, b := range m.BiasesMagnitude {
		s.TotalBiases += uint64(len(b))
	}
	return s
}
