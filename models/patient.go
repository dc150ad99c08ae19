package models

import "time"

type EmergencyContact struct {
	Name         string `json:"name" bson:"name"`
	Relationship string `json:"relationship,omitempty" bson:"relationship,omitempty"`
	Phone        string `json:"phone" bson:"phone"`
}

type PatientProfile struct {
	DateOfBirth       *time.Time         `json:"dateOfBirth,omitempty" bson:"dateOfBirth,omitempty"`
	Gender            string             `json:"gender,omitempty" bson:"gender,omitempty"`
	ContactNumber     string             `json:"contactNumber,omitempty" bson:"contactNumber,omitempty"`
	BloodGroup        string             `json:"bloodGroup,omitempty" bson:"bloodGroup,omitempty"`
	Allergies         []string           `json:"allergies,omitempty" bson:"allergies,omitempty"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts,omitempty" bson:"emergencyContacts,omitempty"`
	MedicalHistory    *MedicalHistory    `json:"medicalHistory,omitempty" bson:"medicalHistory,omitempty"`
}

type MedicalHistory struct {
	Conditions  []string `json:"conditions,omitempty" bson:"conditions,omitempty"`
	Allergies   []string `json:"allergies,omitempty" bson:"allergies,omitempty"`
	Medications []string `json:"medications,omitempty" bson:"medications,omitempty"`
}
