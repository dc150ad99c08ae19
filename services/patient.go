package services

import (
	"HealthConnect/models"
	"HealthConnect/role"
	"HealthConnect/util"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// profileFields lists what each role may change about itself.
var profileFields = map[role.Role]map[string]bool{
	role.Doctor: {
		"name": true, "specialization": true, "qualification": true, "experience": true,
		"about": true, "contactNumber": true, "avatar": true,
	},
	role.Patient: {
		"name": true, "dateOfBirth": true, "gender": true, "contactNumber": true,
		"bloodGroup": true, "allergies": true, "emergencyContacts": true, "medicalHistory": true,
	},
	role.Admin: {
		"name": true,
	},
}

func fieldError(field string) error {
	return util.ValidationError(util.UNSUPPORTED_PROFILE_FIELD).WithDetail("field", field)
}

func decodeField(field string, raw json.RawMessage, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return util.ValidationError("invalid value for " + field).WithDetail("field", field)
	}
	return nil
}

/*
* Every key must be on the caller's allow-list
* Decode each value into its typed field
* Save once everything decoded
 */
func (s *AuthService) UpdateProfile(ctx context.Context, accountID primitive.ObjectID, fields map[string]json.RawMessage) (*models.Account, error) {
	log := s.deps.Logger
	acc, err := s.deps.Store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return nil, storeError(err, util.USER_NOT_FOUND)
	}
	allowed := profileFields[acc.Role]
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !allowed[k] {
			return nil, fieldError(k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if acc.Role == role.Doctor && acc.Doctor == nil {
		acc.Doctor = &models.DoctorProfile{}
	}
	if acc.Role == role.Patient && acc.Patient == nil {
		acc.Patient = &models.PatientProfile{}
	}

	for _, k := range keys {
		if err := applyProfileField(acc, k, fields[k]); err != nil {
			return nil, err
		}
	}
	acc.UpdatedAt = s.deps.Now()
	if err := s.deps.Store.Accounts().Update(ctx, acc); err != nil {
		log.Error("error updating profile", zap.Error(err))
		return nil, util.InternalError(err)
	}
	return acc, nil
}

func applyProfileField(acc *models.Account, k string, raw json.RawMessage) error {
	var str string
	switch k {
	case "name":
		if err := decodeField(k, raw, &str); err != nil {
			return err
		}
		if strings.TrimSpace(str) == "" {
			return util.ValidationError("name cannot be empty")
		}
		acc.Name = strings.TrimSpace(str)
	case "experience":
		var years int
		if err := decodeField(k, raw, &years); err != nil {
			return err
		}
		if years < 0 {
			return util.ValidationError(util.INVALID_EXPERIENCE)
		}
		acc.Doctor.Experience = years
	case "specialization":
		return decodeField(k, raw, &acc.Doctor.Specialization)
	case "qualification":
		return decodeField(k, raw, &acc.Doctor.Qualification)
	case "about":
		return decodeField(k, raw, &acc.Doctor.About)
	case "avatar":
		return decodeField(k, raw, &acc.Doctor.Avatar)
	case "contactNumber":
		if err := decodeField(k, raw, &str); err != nil {
			return err
		}
		if acc.Doctor != nil {
			acc.Doctor.ContactNumber = str
		}
		if acc.Patient != nil {
			acc.Patient.ContactNumber = str
		}
	case "dateOfBirth":
		var dob time.Time
		if err := decodeField(k, raw, &dob); err != nil {
			return err
		}
		acc.Patient.DateOfBirth = &dob
	case "gender":
		return decodeField(k, raw, &acc.Patient.Gender)
	case "bloodGroup":
		return decodeField(k, raw, &acc.Patient.BloodGroup)
	case "allergies":
		return decodeField(k, raw, &acc.Patient.Allergies)
	case "emergencyContacts":
		return decodeField(k, raw, &acc.Patient.EmergencyContacts)
	case "medicalHistory":
		return mergeMedicalHistory(acc.Patient, raw)
	default:
		return fieldError(k)
	}
	return nil
}

// mergeMedicalHistory replaces only the lists present in raw.
func mergeMedicalHistory(p *models.PatientProfile, raw json.RawMessage) error {
	var in struct {
		Conditions  *[]string `json:"conditions"`
		Allergies   *[]string `json:"allergies"`
		Medications *[]string `json:"medications"`
	}
	if err := decodeField("medicalHistory", raw, &in); err != nil {
		return err
	}
	h := models.MedicalHistory{}
	if p.MedicalHistory != nil {
		h = *p.MedicalHistory
	}
	if in.Conditions != nil {
		h.Conditions = *in.Conditions
	}
	if in.Allergies != nil {
		h.Allergies = *in.Allergies
	}
	if in.Medications != nil {
		h.Medications = *in.Medications
	}
	p.MedicalHistory = &h
	return nil
}

/*
* Only patients delete themselves
* Cancel the upcoming appointments, end the sessions and remove the account together
 */
func (s *AuthService) DeleteAccount(ctx context.Context, accountID primitive.ObjectID) error {
	log := s.deps.Logger
	acc, err := s.deps.Store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return storeError(err, util.USER_NOT_FOUND)
	}
	if acc.Role != role.Patient {
		return util.NewError(util.KindNotAuthorized, util.ONLY_PATIENT_CAN_DELETE)
	}
	now := s.deps.Now()
	var cancelled, revoked int64
	err = s.deps.inTx(ctx, func(ctx context.Context) error {
		var err error
		cancelled, err = s.deps.Store.Appointments().CancelFuture(ctx,
			appointmentsOf(role.Patient, acc.ID), now, models.CancelledByPatient, "Patient account deleted", now)
		if err != nil {
			return err
		}
		revoked, err = s.deps.Store.Sessions().RevokeAll(ctx, acc.ID, "", RevokeAccountDeleted, now)
		if err != nil {
			return err
		}
		return s.deps.Store.Accounts().Delete(ctx, acc.ID)
	})
	if err != nil {
		return txError(log, "error deleting account", err)
	}
	countRevoked(RevokeAccountDeleted, revoked)
	log.Info("account deleted", zap.String("email", acc.Email), zap.Int64("cancelledAppointments", cancelled))
	return nil
}
