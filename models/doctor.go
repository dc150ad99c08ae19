package models

type DoctorProfile struct {
	Specialization string `json:"specialization" bson:"specialization"`
	Qualification  string `json:"qualification" bson:"qualification"`
	Experience     int    `json:"experience" bson:"experience"`
	About          string `json:"about,omitempty" bson:"about,omitempty"`
	ContactNumber  string `json:"contactNumber,omitempty" bson:"contactNumber,omitempty"`
	Avatar         string `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

// PublicDoctor is what patients see when browsing doctors.
type PublicDoctor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	Qualification  string `json:"qualification"`
	Experience     int    `json:"experience"`
	About          string `json:"about,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
}

func NewPublicDoctor(a *Account) PublicDoctor {
	d := PublicDoctor{ID: a.ID.Hex(), Name: a.Name}
	if a.Doctor != nil {
		d.Specialization = a.Doctor.Specialization
		d.Qualification = a.Doctor.Qualification
		d.Experience = a.Doctor.Experience
		d.About = a.Doctor.About
		d.Avatar = a.Doctor.Avatar
	}
	return d
}
