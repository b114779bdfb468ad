package remote

// TransformFunc converts an output value of a semantic kind (date, file)
// into its wire-ready form. The dispatcher never inspects the wire
// format; the protocol layer injects whatever encoding it needs.
type TransformFunc func(value any) any

func identityTransform(value any) any { return value }

// SetDateTransformation installs the converter applied by ToDate. A nil
// function restores the identity default.
func (a *Api) SetDateTransformation(fn TransformFunc) {
	a.dateTransform = fn
}

// SetFileTransformation installs the converter applied by ToFile. A nil
// function restores the identity default.
func (a *Api) SetFileTransformation(fn TransformFunc) {
	a.fileTransform = fn
}

// ToDate converts a date-kind value into its wire-ready form.
func (a *Api) ToDate(value any) any {
	if a.dateTransform == nil {
		return identityTransform(value)
	}
	return a.dateTransform(value)
}

// ToFile converts a file-kind value into its wire-ready form.
func (a *Api) ToFile(value any) any {
	if a.fileTransform == nil {
		return identityTransform(value)
	}
	return a.fileTransform(value)
}
