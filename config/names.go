package config

// Names of the signatures the registry resolves.
const (
	InputKey = "AOakPlayerController::InputKey"

	DisplayNATHelpDialog = "UOakGameInstance::DisplayNATHelpDialog"
	ShowDialog           = "UGbxGFxCoreDialogBoxHelpers::ShowDialog"

	SetFirstOptions     = "UGFxOptionsMenu::SetFirstOptionsToLookAt"
	SoftObjectOffset    = "UGFxMainAndPauseBaseMenu::SoftObjectOffset"
	StartMenuTransition = "UGFxMainAndPauseBaseMenu::StartMenuTransition"

	Refresh          = "UGFxOptionBase::Refresh"
	OptionListOffset = "UGFxOptionBase::OptionListOffset"
	CreateItem       = "UGFxOptionBase::CreateContentPanelItem"
	GetOptionTitle   = "UGFxOptionsMenu::GetOptionTitle"
	ScrollToPosition = "UGbxGFxGridScrollingList::ScrollToPosition"

	SetupTitle       = "UGFxOptionBase::SetupTitleItem"
	SetupSlider      = "UGFxOptionBase::SetupSliderItem"
	SetupSpinner     = "UGFxOptionBase::SetupSpinnerItem"
	SetupBoolSpinner = "UGFxOptionBase::SetupSpinnerItemAsBool"
	SetupDropdown    = "UGFxOptionBase::SetupDropDownListItem"
	SetupButton      = "UGFxOptionBase::SetupButtonItem"
	SetupControls    = "UGFxOptionBase::SetupControlsItem"
	BindUFunction    = "TBaseDelegate::BindUFunction"

	AddMenuItem             = "UGFxMainAndPauseBaseMenu::AddMenuItem"
	BeginConfigureMenuItems = "UGFxMainAndPauseBaseMenu::BeginConfigureMenuItems"
	SetMenuState            = "UGFxMainAndPauseBaseMenu::SetMenuState"
	MenuStateOffset         = "UGFxMainAndPauseBaseMenu::MenuStateOffset"

	ComboBoxSelectedIndex = "UGbxGFxListItemComboBox::GetSelectedIndex"
	NumberValue           = "UGbxGFxListItemNumber::GetCurrentValue"
	SpinnerSelectedIndex  = "UGbxGFxListItemSpinner::GetCurrentSelectionIndex"
)
