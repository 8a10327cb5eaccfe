// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package generator

import "github.com/mrdp/mrdp/internal/model"

type robotModel struct {
	name         string
	manufacturer string
}

var robotModels = []robotModel{
	{"DaVinci Xi", "Intuitive Surgical"},
	{"DaVinci X", "Intuitive Surgical"},
	{"DaVinci Si", "Intuitive Surgical"},
	{"Versius", "CMR Surgical"},
	{"ROSA Knee", "Zimmer Biomet"},
	{"ROSA Brain", "Zimmer Biomet"},
	{"Mako SmartRobotics", "Stryker"},
	{"Senhance", "Asensus Surgical"},
	{"Hugo RAS", "Medtronic"},
	{"Monarch Platform", "Auris Health"},
}

var facilityNames = []string{
	"Johns Hopkins Hospital",
	"Mayo Clinic",
	"Massachusetts General Hospital",
	"Cleveland Clinic",
	"UCSF Medical Center",
	"NewYork-Presbyterian Hospital",
	"Cedars-Sinai Medical Center",
	"Stanford Health Care",
	"UCLA Medical Center",
	"Northwestern Memorial Hospital",
}

var procedureTypes = map[string][]string{
	model.CategoryUrological: {
		"Radical Prostatectomy", "Partial Nephrectomy", "Radical Nephrectomy",
		"Pyeloplasty", "Radical Cystectomy",
	},
	model.CategoryGynecological: {
		"Hysterectomy", "Myomectomy", "Sacrocolpopexy",
		"Ovarian Cystectomy", "Endometriosis Resection",
	},
	model.CategoryCardiac: {
		"Mitral Valve Repair", "Coronary Artery Bypass",
		"Atrial Septal Defect Repair", "CABG",
	},
	model.CategoryThoracic: {
		"Lobectomy", "Thymectomy", "Esophagectomy", "Mediastinal Mass Resection",
	},
	model.CategoryGeneral: {
		"Cholecystectomy", "Hernia Repair", "Colorectal Resection",
		"Gastric Bypass", "Fundoplication",
	},
	model.CategoryOrthopedic: {
		"Total Knee Replacement", "Total Hip Replacement",
		"Spinal Fusion", "ACL Reconstruction",
	},
}

var surgicalTools = []string{
	"Grasper", "Scissors", "Cautery Hook", "Needle Driver",
	"Forceps", "Retractor", "Scalpel", "Clip Applier",
}

// Tools that report a grip pressure.
var grippingTools = map[string]bool{
	"Grasper":       true,
	"Forceps":       true,
	"Needle Driver": true,
}

var (
	surgeonFirstNames = []string{
		"James", "Michael", "Robert", "John", "David", "William", "Richard", "Joseph",
		"Mary", "Patricia", "Jennifer", "Linda", "Elizabeth", "Barbara", "Susan", "Jessica",
	}
	surgeonLastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
		"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas",
	}
	technicianFirstNames = []string{"John", "Mike", "Steve", "Tom", "Dave", "Sarah", "Emily", "Lisa"}
	technicianLastNames  = []string{"Anderson", "Thompson", "Garcia", "Martinez", "Robinson", "Clark", "Lewis", "Walker"}
)

// complications excludes "none", which is reserved for successful outcomes.
var complications = []string{
	"minor bleeding", "infection", "prolonged recovery", "organ injury",
	"adhesions", "nerve damage", "urinary retention", "ileus",
}

var genders = []string{"Male", "Female", "Other"}

var (
	successNotes = []string{
		"Procedure completed without incident.",
		"Patient tolerated procedure well.",
		"Minimal blood loss, excellent visualization.",
		"Standard procedure, no complications noted.",
		"Patient stable throughout procedure.",
	}
	complicationNotes = []string{
		"Complications noted and managed appropriately.",
		"Extended procedure time due to anatomical challenges.",
		"Additional intervention required.",
		"Patient transferred to ICU for monitoring.",
	}
)

type maintenanceCatalog struct {
	issues  []string
	actions []string
}

var maintenanceByType = map[string]maintenanceCatalog{
	model.MaintenanceRoutine: {
		issues: []string{
			"No issues found", "Normal wear on actuators",
			"Calibration drift detected", "Minor sensor degradation",
		},
		actions: []string{
			"Performed standard preventive maintenance",
			"Cleaned and lubricated all moving parts",
			"Calibrated sensors and actuators",
			"Updated firmware to latest version",
			"Replaced air filters",
		},
	},
	model.MaintenanceEmergency: {
		issues: []string{
			"Arm motor failure", "Hydraulic system leak", "Control system malfunction",
			"Camera system failure", "Emergency stop triggered unexpectedly",
		},
		actions: []string{
			"Replaced failed motor assembly",
			"Repaired hydraulic seal",
			"Reset control system and ran diagnostics",
			"Replaced camera module",
			"Investigated and cleared emergency stop system",
		},
	},
	model.MaintenanceUpgrade: {
		issues: []string{
			"Scheduled hardware upgrade", "Software enhancement required",
			"Performance optimization requested",
		},
		actions: []string{
			"Installed new control module",
			"Upgraded to latest software version",
			"Added enhanced visualization system",
			"Installed improved haptic feedback system",
		},
	},
	model.MaintenanceCalibration: {
		issues: []string{
			"Regular calibration schedule", "Accuracy verification required",
			"Post-repair calibration",
		},
		actions: []string{
			"Performed full system calibration",
			"Verified all sensor accuracies",
			"Calibrated camera and arm alignment",
			"Validated positioning accuracy",
		},
	},
}

const noParts = "None"

var replaceableParts = []string{
	"Actuator assembly", "Sensor module", "Camera unit", "Hydraulic seal kit",
	"Control board", "Power supply unit", "Gripper assembly",
}

type span struct{ lo, hi float64 }

var (
	downtimeByType = map[string]span{
		model.MaintenanceEmergency:   {4, 24},
		model.MaintenanceUpgrade:     {2, 12},
		model.MaintenanceCalibration: {1, 4},
		model.MaintenanceRoutine:     {0.5, 3},
	}
	costByType = map[string]span{
		model.MaintenanceRoutine:     {500, 2000},
		model.MaintenanceEmergency:   {5000, 25000},
		model.MaintenanceUpgrade:     {10000, 50000},
		model.MaintenanceCalibration: {1000, 5000},
	}
	partsCost = span{2000, 15000}
)
