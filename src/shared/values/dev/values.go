package dev

const (
	Port               = "5000"
	WorkingDirPath     = "./wd/pipeline"
	SessionRootPath    = "./wd/sessions"
	CORSAllowedOrigins = "http://localhost:3000"
)
