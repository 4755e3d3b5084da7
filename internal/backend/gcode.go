package backend

// swapInitGCode homes the printer and loads the first plate.
const swapInitGCode = `;swap ini code
G91 ; 
G0 Z50 F1000; 
G0 Z-20; 
G90; 
 G28 XY; 
 G0 Y-4 F5000; grab 
 G0 Y145;  pull and fix the plate
G0 Y115 F1000; rehook 
 G0 Y180 F5000; pull
 G4 P500; wait  
 G0 Y186.5 F200; fix the plate
 G4 P500; wait  
 G0 Y3 F15000; back 
 G0 Y-5 F200; snap 
G4 P500; wait  
 G0 Y10 F1000; load 
 G0 Y20 F15000; ready 
 
`

// swapSequenceGCode ejects the finished plate and loads the next one.
const swapSequenceGCode = `;swap 
G0 X-10 F5000; 
 G0 Z175; 
 G0 Y-5 F2000;  
  G0 Y186.5 F2000;  
  G0 Y182 F10000;  
  G0 Z186 ; 
 G0 Y120 F500; 
 G0 Y-4 Z175 F5000; 
 G0 Y145; 
  G0 Y115 F1000; 
 G0 Y25 F500; 
 G0 Y85 F1000; 
 G0 Y180 F2000; 
 G4 P500; wait  
 G0 Y186.5 F200; 
 G4 P500; wait  
 G0 Y3 F3000; 
 G0 Y-5 F200; 
G4 P500; wait  
 G0 Y10 F1000; 
 G0 Z100 Y186 F2000; 
 G0 Y150; 
 G4 P1000; wait  
 
`
