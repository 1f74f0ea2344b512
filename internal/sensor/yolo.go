package sensor

// YOLOConfig configures the local YOLO object detector available in gocv
// builds.
type YOLOConfig struct {
	// ModelPath is a YOLOv8 ONNX export.
	ModelPath string `yaml:"model_path"`

	ConfidenceThresh float32 `yaml:"confidence"`
	NMSThresh        float32 `yaml:"nms"`
	InputSize        int     `yaml:"input_size"`
}

func (c YOLOConfig) withDefaults() YOLOConfig {
	if c.ConfidenceThresh <= 0 {
		c.ConfidenceThresh = 0.5
	}
	if c.NMSThresh <= 0 {
		c.NMSThresh = 0.3
	}
	if c.InputSize <= 0 {
		c.InputSize = 640
	}
	return c
}

// cocoClasses are the 80 labels of the COCO dataset in model output order.
var cocoClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
