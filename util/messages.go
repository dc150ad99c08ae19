package util

const (
	INTERNAL_ERROR          = "something went wrong, please try again later"
	RESOURCE_NOT_FOUND      = "resource not found"
	AUTHENTICATION_REQUIRED = "authentication required"
	NOT_AUTHORIZED          = "not authorized to perform this action"
	TOO_MANY_REQUESTS       = "too many requests, please wait before trying again"

	ALL_FIELDS_REQUIRED           = "name, email, password and role are required"
	INVALID_EMAIL                 = "a valid email is required"
	INVALID_ROLE                  = "role must be doctor or patient"
	INVALID_LOGIN_ROLE            = "role must be doctor, patient or admin"
	PASSWORD_TOO_SHORT            = "password must be at least 6 characters"
	MISSING_DOCTOR_FIELDS         = "specialization, qualification and experience are required for doctors"
	INVALID_EXPERIENCE            = "experience cannot be negative"
	USER_ALREADY_EXISTS           = "user already exists with this email"
	INVALID_CREDENTIALS           = "invalid credentials"
	EMAIL_NOT_VERIFIED            = "email not verified, please verify your email first"
	EMAIL_ALREADY_VERIFIED        = "email is already verified"
	ACCOUNT_SUSPENDED             = "account suspended"
	DEFAULT_SUSPENSION_REASON     = "Your account has been suspended by an administrator. Please contact support for more information."
	USER_NOT_FOUND                = "user not found"
	INVALID_OTP_PURPOSE           = "purpose must be registration or login"
	OTP_REQUIRED                  = "email, otp, role and purpose are required"
	INVALID_OR_EXPIRED_OTP        = "invalid or expired OTP"
	OTP_ATTEMPTS_EXHAUSTED        = "too many failed attempts, please request a new OTP"
	RESET_LIMIT_EXCEEDED          = "password reset limit exceeded for this account"
	INVALID_OR_EXPIRED_TOKEN      = "password reset token is invalid or has expired"
	PASSWORDS_DO_NOT_MATCH        = "newPassword and confirmPassword do not match"
	PASSWORD_SAME_AS_CURRENT      = "new password must differ from the current password"
	CURRENT_PASSWORD_INCORRECT    = "current password is incorrect"
	FAILED_TO_SEND_RESET_EMAIL    = "failed to send password reset email, please try again later"
	SESSION_NOT_FOUND             = "session not found"
	SESSION_EXPIRED               = "session expired or revoked, please log in again"
	ONLY_PATIENT_CAN_DELETE       = "only patients can delete their own account"
	UNSUPPORTED_PROFILE_FIELD     = "field cannot be updated"
	INVALID_DATE                  = "date must be in YYYY-MM-DD format"
	DATE_OUTSIDE_BOOKING_HORIZON  = "date is outside the booking window"
	INVALID_SLOT_NUMBER           = "slot number must be between 1 and 12"
	INVALID_WEEKDAY               = "day must be Monday to Sunday"
	DUPLICATE_WEEKDAY             = "each day may appear only once"
	DOCTOR_NOT_FOUND              = "doctor not found"
	NOT_A_PATIENT                 = "only patients can book appointments"
	NOT_A_DOCTOR                  = "only doctors can manage a schedule"
	SLOT_UNAVAILABLE              = "slot is not available"
	APPOINTMENT_NOT_FOUND         = "appointment not found"
	NOT_APPOINTMENT_PARTY         = "not authorized to access this appointment"
	INVALID_STATUS                = "invalid appointment status"
	INVALID_STATUS_TRANSITION     = "appointment status transition not allowed"
	PATIENT_CAN_ONLY_CANCEL       = "patients can only cancel appointments"
	REASON_EDITABLE_WHILE_PENDING = "reason can only be changed while the appointment is pending"
	INVALID_TARGET_TYPE           = "userType must be doctor or patient"
	INVALID_TOGGLE_ACTION         = "action must be suspend or activate"
	INVALID_VERIFICATION_STATUS   = "verificationStatus must be pending, verified or rejected"
	ADMIN_ACCESS_REQUIRED         = "admin access required"
	SUSPENSION_CANCEL_REASON      = "Account doctor suspended by admin"
	SUPER_ADMIN_REQUIRED          = "only super admin can change user roles"
	INVALID_NEW_ROLE              = "newRole must be doctor or patient"
	ROLE_UNCHANGED                = "newRole must differ from the current role"
	ROLE_CHANGE_CANCEL_REASON     = "Account role changed by admin"
)

// Success messages.
const (
	REGISTRATION_CODE_SENT    = "registration successful, please verify your email with the OTP sent"
	LOGIN_CODE_SENT           = "OTP sent to your email"
	EMAIL_VERIFIED            = "email verified successfully"
	LOGIN_SUCCESSFUL          = "login successful"
	CODE_RESENT               = "OTP resent successfully"
	RESET_LINK_SENT           = "password reset link sent to your email"
	PASSWORD_RESET_SUCCESSFUL = "password reset successful, please log in with your new password"
	PASSWORD_CHANGED          = "password changed successfully"
	LOGGED_OUT                = "logged out successfully"
	SESSION_REVOKED           = "session revoked"
	PROFILE_UPDATED           = "profile updated successfully"
	ACCOUNT_DELETED           = "account deleted successfully"
	SCHEDULE_SAVED            = "schedule saved successfully"
	APPOINTMENT_BOOKED        = "appointment booked successfully"
	APPOINTMENT_UPDATED       = "appointment updated successfully"
	APPOINTMENT_DELETED       = "appointment deleted successfully"
	USER_STATUS_UPDATED       = "user status updated successfully"
	USER_VERIFICATION_UPDATED = "user verification status updated successfully"
	USER_ROLE_UPDATED         = "user role updated successfully"
)
