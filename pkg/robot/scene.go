// Package robot provides a client for a simulated two-wheeled robot with a camera and a gripper.
package robot

// SceneNames are the names of the scene objects the robot binds to.
type SceneNames struct {
	VisionSensor   string `json:"vision_sensor" yaml:"vision_sensor"`
	LeftWheel      string `json:"left_wheel" yaml:"left_wheel"`
	RightWheel     string `json:"right_wheel" yaml:"right_wheel"`
	GripperCamera  string `json:"gripper_camera" yaml:"gripper_camera"`
	GripperTarget  string `json:"gripper_target" yaml:"gripper_target"`
	GripperResting string `json:"gripper_resting" yaml:"gripper_resting"`
}

// Object names of the standard scene.
const (
	VisionSensor   = "Vision_sensor"
	LeftWheel      = "fl_wheel_joint"
	RightWheel     = "fr_wheel_joint"
	GripperCamera  = "gripper_cam"
	GripperTarget  = "gripper_target"
	GripperResting = "gripper_resting_position"
)

// DefaultSceneNames returns the names used by the standard scene.
func DefaultSceneNames() SceneNames {
	return SceneNames{
		VisionSensor:   VisionSensor,
		LeftWheel:      LeftWheel,
		RightWheel:     RightWheel,
		GripperCamera:  GripperCamera,
		GripperTarget:  GripperTarget,
		GripperResting: GripperResting,
	}
}

// All returns every name in a fixed order.
func (n SceneNames) All() []string {
	return []string{
		n.VisionSensor,
		n.LeftWheel,
		n.RightWheel,
		n.GripperCamera,
		n.GripperTarget,
		n.GripperResting,
	}
}

// withDefaults fills empty names from the standard scene.
func (n SceneNames) withDefaults() SceneNames {
	d := DefaultSceneNames()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&n.VisionSensor, d.VisionSensor)
	fill(&n.LeftWheel, d.LeftWheel)
	fill(&n.RightWheel, d.RightWheel)
	fill(&n.GripperCamera, d.GripperCamera)
	fill(&n.GripperTarget, d.GripperTarget)
	fill(&n.GripperResting, d.GripperResting)
	return n
}
