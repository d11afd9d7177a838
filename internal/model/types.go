package model

// Metadata describes the exported ONNX graph. It is written next to the
// model file by the export script.
type Metadata struct {
	InputShape   []int64  `json:"input_shape"`
	OutputShape  []int64  `json:"output_shape"`
	InputName    string   `json:"input_name"`
	OutputName   string   `json:"output_name"`
	ApplySoftmax bool     `json:"apply_softmax"`
	Classes      []string `json:"classes"`
}

const (
	defaultInputName  = "input"
	defaultOutputName = "output"
)
