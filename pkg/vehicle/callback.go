package vehicle

// Callback receives everything the HAL sends to a client. Slices passed to
// the methods are only valid for the duration of the call.
type Callback interface {
	// OnPropertyEvent delivers a batch of hardware events.
	OnPropertyEvent(values []PropertyValue) error
	// OnPropertySet notifies that another client set a property.
	OnPropertySet(value PropertyValue) error
	// OnPropertySetError reports an asynchronous set failure.
	OnPropertySetError(code StatusCode, propID, areaID int32) error
	// OnGetValues delivers results of an asynchronous get.
	OnGetValues(results []GetValueResult) error
	// OnSetValues delivers results of an asynchronous set.
	OnSetValues(results []SetValueResult) error
}

// CallbackFuncs adapts plain functions to Callback. Nil fields are ignored.
type CallbackFuncs struct {
	PropertyEvent    func(values []PropertyValue) error
	PropertySet      func(value PropertyValue) error
	PropertySetError func(code StatusCode, propID, areaID int32) error
	GetValues        func(results []GetValueResult) error
	SetValues        func(results []SetValueResult) error
}

var _ Callback = (*CallbackFuncs)(nil)

func (f *CallbackFuncs) OnPropertyEvent(values []PropertyValue) error {
	if f.PropertyEvent == nil {
		return nil
	}
	return f.PropertyEvent(values)
}

func (f *CallbackFuncs) OnPropertySet(value PropertyValue) error {
	if f.PropertySet == nil {
		return nil
	}
	return f.PropertySet(value)
}

func (f *CallbackFuncs) OnPropertySetError(code StatusCode, propID, areaID int32) error {
	if f.PropertySetError == nil {
		return nil
	}
	return f.PropertySetError(code, propID, areaID)
}

func (f *CallbackFuncs) OnGetValues(results []GetValueResult) error {
	if f.GetValues == nil {
		return nil
	}
	return f.GetValues(results)
}

func (f *CallbackFuncs) OnSetValues(results []SetValueResult) error {
	if f.SetValues == nil {
		return nil
	}
	return f.SetValues(results)
}
